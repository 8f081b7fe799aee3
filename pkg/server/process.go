package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Launcher is the runtime used to execute the server artifact,
// e.g. {Path: "java", Args: []string{"-Xmx2G", "-jar"}}.
type Launcher struct {
	Path string   // Binary name or path, resolved through PATH
	Args []string // Arguments placed before the executable path
}

// DefaultLauncher runs the server jar with java from PATH.
var DefaultLauncher = Launcher{Path: "java", Args: []string{"-jar"}}

type lookupResult struct {
	path string
	err  error
}

var (
	lookupMu    sync.Mutex
	lookupCache = map[string]lookupResult{}
)

// resolveLauncher looks the launcher binary up once per process and caches the outcome.
func resolveLauncher(name string) (string, error) {
	lookupMu.Lock()
	defer lookupMu.Unlock()

	if res, ok := lookupCache[name]; ok {
		return res.path, res.err
	}

	path, err := exec.LookPath(name)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrLauncherNotFound, name, err)
	}
	lookupCache[name] = lookupResult{path: path, err: err}
	return path, err
}

// ExitStatus describes how a process terminated.
type ExitStatus struct {
	Code    int  // Exit code, -1 when killed by a signal
	Success bool // Whether the process exited with code 0
}

func (s ExitStatus) String() string {
	return fmt.Sprintf("exit status %d", s.Code)
}

// Process is a spawned child with piped stdin and stdout.
//
// Stderr is discarded unless a writer is passed to Spawn.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	writeMu sync.Mutex

	waitOnce sync.Once
	exited   chan struct{}
	status   ExitStatus
	waitErr  error
}

// Spawn starts executable through launcher with args.
//
// The working directory is dir, or the executable's parent directory when dir is empty.
// Instance passes its configured Dir, which differs from the executable's parent
// when the jar lives outside the server directory.
func Spawn(launcher Launcher, executable string, args []string, dir string, stderr io.Writer) (*Process, error) {
	bin, err := resolveLauncher(launcher.Path)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = filepath.Dir(executable)
	}

	argv := make([]string, 0, len(launcher.Args)+1+len(args))
	argv = append(argv, launcher.Args...)
	argv = append(argv, executable)
	argv = append(argv, args...)

	cmd := exec.Command(bin, argv...)
	cmd.Dir = dir
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdin pipe: %w", ErrIO, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdout pipe: %w", ErrIO, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %w", ErrIO, bin, err)
	}

	return &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		exited: make(chan struct{}),
	}, nil
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// WriteLine writes text to stdin followed by exactly one newline.
func (p *Process) WriteLine(text string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.stdin == nil {
		return fmt.Errorf("%w: stdin is closed", ErrIO)
	}

	line := strings.TrimRight(text, " \t\r\n") + "\n"
	if _, err := io.WriteString(p.stdin, line); err != nil {
		return fmt.Errorf("%w: writing to stdin: %w", ErrIO, err)
	}
	return nil
}

// CloseStdin detaches the input stream. Later writes fail.
func (p *Process) CloseStdin() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.stdin == nil {
		return nil
	}
	err := p.stdin.Close()
	p.stdin = nil
	return err
}

// ReadLine blocks until the next output line and returns it without the line terminator.
// It returns io.EOF once the stream is closed. A final unterminated line is returned
// before io.EOF. ReadLine must not be called concurrently.
func (p *Process) ReadLine() (string, error) {
	line, err := p.stdout.ReadString('\n')
	if err != nil {
		if line != "" && errors.Is(err, io.EOF) {
			return strings.TrimRight(line, "\r"), nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return "", io.EOF
		}
		return "", fmt.Errorf("%w: reading stdout: %w", ErrIO, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Wait blocks until the process exits. It may be called from several goroutines;
// the child is reaped once and every caller gets the same result.
// A non-zero exit is reported in the status, not as an error.
func (p *Process) Wait() (ExitStatus, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.status = ExitStatus{Code: 0, Success: true}
		case errors.As(err, &exitErr):
			p.status = ExitStatus{Code: exitErr.ExitCode()}
		default:
			p.waitErr = fmt.Errorf("%w: waiting for process: %w", ErrIO, err)
		}
		close(p.exited)
	})

	<-p.exited
	return p.status, p.waitErr
}

// Exited is closed once Wait has observed the process exit.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Kill terminates the process immediately and reaps it.
// Killing a process that has already exited is not an error.
func (p *Process) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%w: killing process %d: %w", ErrIO, p.PID(), err)
	}
	p.Wait()
	return nil
}
