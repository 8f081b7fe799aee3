package app

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Console is the user-facing side of the CLI: coloured output and line input.
type Console struct {
	out io.Writer
	err io.Writer
	in  io.Reader

	infoColor    *color.Color
	errorColor   *color.Color
	successColor *color.Color
	promptColor  *color.Color
}

// NewConsole creates a console. When enableColor is false no escape sequences are written.
func NewConsole(in io.Reader, out, errOut io.Writer, enableColor bool) *Console {
	c := &Console{
		out:          out,
		err:          errOut,
		in:           in,
		infoColor:    color.New(color.FgBlue),
		errorColor:   color.New(color.FgRed),
		successColor: color.New(color.FgGreen),
		promptColor:  color.New(color.FgCyan, color.Bold),
	}

	for _, col := range []*color.Color{c.infoColor, c.errorColor, c.successColor, c.promptColor} {
		if enableColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Info prints an informational line.
func (c *Console) Info(format string, args ...any) {
	c.infoColor.Fprintf(c.out, format+"\n", args...)
}

// Success prints a line reporting a successful result.
func (c *Console) Success(format string, args ...any) {
	c.successColor.Fprintf(c.out, format+"\n", args...)
}

// Error prints a line to the error stream.
func (c *Console) Error(format string, args ...any) {
	c.errorColor.Fprintf(c.err, format+"\n", args...)
}

// Prompt prints a prompt without a line break.
func (c *Console) Prompt(prompt string) {
	c.promptColor.Fprint(c.out, prompt)
}

// Lines delivers input lines until EOF or ctx ends. The channel is closed afterwards.
func (c *Console) Lines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// Println writes plain text, as received from the server.
func (c *Console) Println(text string) {
	fmt.Fprintln(c.out, text)
}
