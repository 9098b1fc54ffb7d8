package pose

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ProcessSource runs an external pose estimator and reads NDJSON frames from
// its stdout. The estimator owns the camera; mudra only consumes landmarks.
type ProcessSource struct {
	name string
	args []string
}

// NewProcessSource creates a ProcessSource for the given command line.
func NewProcessSource(name string, args ...string) *ProcessSource {
	return &ProcessSource{name: name, args: args}
}

// NewDefaultProcessSource locates the bundled pose_service.py script and a
// Python interpreter, preferring a virtual environment if one exists.
func NewDefaultProcessSource() (*ProcessSource, error) {
	script := findPoseScript()
	if script == "" {
		return nil, fmt.Errorf("pose_service.py not found")
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}
	return NewProcessSource(python, script), nil
}

// Frames implements Source. The process is killed when ctx is cancelled.
func (p *ProcessSource) Frames(ctx context.Context) (<-chan Frame, <-chan error) {
	out := make(chan Frame)
	errs := make(chan error, 1)

	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		errs <- fmt.Errorf("create stdout pipe: %w", err)
		close(out)
		close(errs)
		return out, errs
	}
	if err := cmd.Start(); err != nil {
		errs <- fmt.Errorf("start pose estimator: %w", err)
		close(out)
		close(errs)
		return out, errs
	}

	go func() {
		defer close(out)
		defer close(errs)

		frames, streamErrs := NewStreamSource(stdout).Frames(ctx)
		for f := range frames {
			select {
			case out <- f:
			case <-ctx.Done():
			}
		}
		streamErr := <-streamErrs

		waitErr := cmd.Wait()
		switch {
		case ctx.Err() != nil:
			// Cancelled; the kill error is expected.
		case streamErr != nil:
			errs <- streamErr
		case waitErr != nil:
			errs <- fmt.Errorf("pose estimator exited: %w", waitErr)
		}
	}()

	return out, errs
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/pose_service.py"),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
