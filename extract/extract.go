// Package extract obtains a fresh status feed from the work-order system.
//
// Live extraction drives a desktop client and only works on a prepared
// workstation, so the default extractor reports ErrUnavailable and callers
// fall back to a feed file supplied by the user.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FeedFileName is the file an extraction must leave in the output directory.
const FeedFileName = "_woStatus.xlsx"

// ErrUnavailable means no extraction can run in this environment.
var ErrUnavailable = errors.New("extraction unavailable")

// Extractor produces a status feed file and returns its path.
type Extractor interface {
	Extract(ctx context.Context, variant, outputDir, system string) (string, error)
}

// =============================================================================
// UNAVAILABLE
// =============================================================================

// Unavailable always reports ErrUnavailable.
type Unavailable struct {
	Logger *zap.Logger
}

func (u Unavailable) Extract(_ context.Context, variant, _, system string) (string, error) {
	if u.Logger != nil {
		u.Logger.Warn("live extraction is not configured, provide "+FeedFileName+" manually",
			zap.String("variant", variant),
			zap.String("system", system))
	}
	return "", ErrUnavailable
}

// =============================================================================
// COMMAND
// =============================================================================

// Command runs an external program that writes FeedFileName into the output
// directory. The program receives KPI_VARIANT, KPI_OUTPUT_DIR and
// KPI_SAP_SYSTEM in its environment.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration // zero = no timeout
	Logger  *zap.Logger
}

// ParseCommand splits a command line on whitespace. No quoting is supported.
func ParseCommand(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Path: fields[0], Args: fields[1:]}, true
}

func (c Command) Extract(ctx context.Context, variant, outputDir, system string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Path == "" {
		return "", ErrUnavailable
	}
	if _, err := exec.LookPath(c.Path); err != nil {
		logger.Warn("extraction command not found", zap.String("command", c.Path), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	out := filepath.Join(outputDir, FeedFileName)
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(),
		"KPI_VARIANT="+variant,
		"KPI_OUTPUT_DIR="+outputDir,
		"KPI_SAP_SYSTEM="+system,
	)

	logger.Info("running extraction", zap.String("command", c.Path), zap.String("variant", variant))
	combined, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("extraction failed", zap.Error(err), zap.ByteString("output", combined))
		return "", fmt.Errorf("run %s: %w", c.Path, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("extraction produced no %s: %w", FeedFileName, err)
	}
	logger.Info("saved extraction", zap.String("path", out))
	return out, nil
}

// New returns a Command for a non-empty command line and Unavailable otherwise.
func New(commandLine string, logger *zap.Logger) Extractor {
	if c, ok := ParseCommand(commandLine); ok {
		c.Logger = logger
		return c
	}
	return Unavailable{Logger: logger}
}
