package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"

	"github.com/cjeanneret/stagectl/internal/debug"
)

// Camera is the high-level interface used by the rest of the application.
// It represents the external image acquisition, regardless of how it is
// actually run.
type Camera interface {
	// Start begins a capture for a scan of the given size code, writing
	// under baseName. It must not wait for the capture to finish.
	Start(size int, baseName string) error
}

// ScriptCamera launches an external program for every capture. The size code
// and base name are appended as its two last arguments.
type ScriptCamera struct {
	argv []string
	wg   sync.WaitGroup

	mu       sync.Mutex
	launches int
}

func NewScriptCamera(cmdline string) (*ScriptCamera, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse capture command %q: %w", cmdline, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("capture command is empty")
	}
	return &ScriptCamera{argv: argv}, nil
}

// Start launches the program and returns as soon as it is running.
// A goroutine reaps the child and logs how it exited.
func (s *ScriptCamera) Start(size int, baseName string) error {
	args := append(append([]string{}, s.argv[1:]...), strconv.Itoa(size), baseName)
	cmd := exec.Command(s.argv[0], args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	debug.Info("Camera: launching %s %s", s.argv[0], strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch capture %s: %w", s.argv[0], err)
	}

	s.mu.Lock()
	s.launches++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := cmd.Wait(); err != nil {
			debug.Warn("Camera: capture pid %d exited: %v", cmd.Process.Pid, err)
			return
		}
		debug.Verbose("Camera: capture pid %d finished", cmd.Process.Pid)
	}()
	return nil
}

// Launches returns how many captures were started successfully.
func (s *ScriptCamera) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Wait blocks until every launched capture has exited or ctx is done.
func (s *ScriptCamera) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
