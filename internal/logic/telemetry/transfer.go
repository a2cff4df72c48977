package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/cjeanneret/stagectl/internal/debug"
)

// Transfer runs the command that ships the timing log once a raster is done.
// A Transfer built from an empty command line does nothing.
type Transfer struct {
	argv []string
}

func NewTransfer(cmdline string) (*Transfer, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse transfer command %q: %w", cmdline, err)
	}
	return &Transfer{argv: argv}, nil
}

func (t *Transfer) Enabled() bool {
	return t != nil && len(t.argv) > 0
}

// Run executes the command and waits for it.
func (t *Transfer) Run(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	debug.Verbose("Transfer: running %s", strings.Join(t.argv, " "))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, t.argv[0], t.argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if s := strings.TrimSpace(out.String()); s != "" {
		debug.Verbose("Transfer output: %s", s)
	}
	if err != nil {
		return fmt.Errorf("transfer %s: %w", t.argv[0], err)
	}
	return nil
}
