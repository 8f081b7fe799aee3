package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bytedance/sonic"
)

const (
	// ReportBlocksFile is the block registry report written by the data generator.
	ReportBlocksFile = "blocks.json"

	reportsMainClass = "-DbundlerMainClass=net.minecraft.data.Main"
)

// Reports holds the data generator output that mcctl understands.
type Reports struct {
	Blocks map[string]Block
}

// Block is one entry of the block registry report.
type Block struct {
	// Properties lists the allowed values of each block state property.
	Properties map[string][]string `json:"properties"`
	States     []BlockState        `json:"states"`
}

// BlockState is a concrete combination of block property values.
type BlockState struct {
	ID         uint32            `json:"id"`
	Default    bool              `json:"default"`
	Properties map[string]string `json:"properties"`
}

// DefaultState returns the state flagged as default, if any.
func (b Block) DefaultState() (BlockState, bool) {
	for _, state := range b.States {
		if state.Default {
			return state, true
		}
	}
	return BlockState{}, false
}

// GenerateReports runs the data generator bundled in the server jar and returns
// the directory it wrote its reports to. The generator runs in the jar's directory.
func GenerateReports(ctx context.Context, launcher Launcher, jar string, logger Logger) (string, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	logger.Info("Generating reports from %s", jar)
	proc, err := Spawn(withSystemProperty(launcher, reportsMainClass), jar, []string{"--reports"}, "", nil)
	if err != nil {
		return "", err
	}
	proc.CloseStdin()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			line, err := proc.ReadLine()
			if err != nil {
				return
			}
			logger.Debug("[Generator]: %s", line)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		proc.Kill()
		return "", fmt.Errorf("%w: %w", ErrReportsFailed, ctx.Err())
	}

	status, err := proc.Wait()
	if err != nil {
		return "", err
	}
	if !status.Success {
		return "", fmt.Errorf("%w: generator did not exit successfully: %s", ErrReportsFailed, status)
	}

	return filepath.Join(filepath.Dir(jar), "generated", "reports"), nil
}

// LoadReports reads the reports in dir.
func LoadReports(dir string) (*Reports, error) {
	path := filepath.Join(dir, ReportBlocksFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}

	reports := &Reports{}
	if err := sonic.Unmarshal(data, &reports.Blocks); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrReportsFailed, path, err)
	}
	return reports, nil
}

// withSystemProperty returns a copy of launcher that passes prop to the runtime.
// Runtime flags must come before -jar, so prop is inserted there when present.
func withSystemProperty(launcher Launcher, prop string) Launcher {
	args := slices.Clone(launcher.Args)
	if i := slices.Index(args, "-jar"); i >= 0 {
		args = slices.Insert(args, i, prop)
	} else {
		args = append(args, prop)
	}
	return Launcher{Path: launcher.Path, Args: args}
}
