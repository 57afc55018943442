// Package latex converts bibliography entries from LaTeX markup to plain text.
package latex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/citations"
)

// Config selects and configures the stripper.
type Config struct {
	// Command is the external converter, run once per entry with the entry on stdin.
	Command string
	// Args are passed to Command.
	Args []string
	// Timeout bounds one conversion. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	// FallbackNative uses NativeStripper when Command cannot be found.
	FallbackNative bool
}

// DefaultConfig runs "delatex -s".
func DefaultConfig() Config {
	return Config{
		Command:        "delatex",
		Args:           []string{"-s"},
		Timeout:        10 * time.Second,
		FallbackNative: true,
	}
}

// NewStripper returns an ExecStripper for cfg.Command, or a NativeStripper if
// the command is not installed and cfg.FallbackNative is set.
func NewStripper(cfg Config, logger zerolog.Logger) (citations.MarkupStripper, error) {
	if cfg.Command == "" {
		if cfg.FallbackNative {
			return NewNativeStripper(), nil
		}
		return nil, errors.New("latex: no converter command configured")
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		if cfg.FallbackNative {
			logger.Warn().
				Str("command", cfg.Command).
				Err(err).
				Msg("markup converter not found, using native stripper")
			return NewNativeStripper(), nil
		}
		return nil, fmt.Errorf("latex: find converter %q: %w", cfg.Command, err)
	}

	return NewExecStripper(path, cfg.Args, cfg.Timeout), nil
}

// ExecStripper pipes each entry through an external converter process.
type ExecStripper struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExecStripper creates an ExecStripper.
func NewExecStripper(command string, args []string, timeout time.Duration) *ExecStripper {
	return &ExecStripper{command: command, args: args, timeout: timeout}
}

var _ citations.MarkupStripper = (*ExecStripper)(nil)

// Strip runs the converter. A nonzero exit status or output that is not
// valid UTF-8 is an error.
func (s *ExecStripper) Strip(ctx context.Context, markup string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = strings.NewReader(markup)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", s.command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", s.command, err, msg)
		}
		return "", fmt.Errorf("%s: %w", s.command, err)
	}

	if !utf8.Valid(out) {
		return "", fmt.Errorf("%s: output is not valid UTF-8", s.command)
	}
	return string(out), nil
}
