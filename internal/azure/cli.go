package azure

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultBinary      = "az"
	defaultMaxAttempts = 3
	defaultRetryDelay  = 5 * time.Second
	defaultCallTimeout = 2 * time.Minute
)

// Runner executes one Azure CLI invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CLIConfig holds settings for the az CLI runner.
type CLIConfig struct {
	// Binary is the CLI executable name or path. Default: "az".
	Binary string `yaml:"binary"`

	// MaxAttempts bounds retries for a failing invocation. Default: 3.
	MaxAttempts int `yaml:"maxAttempts"`

	// RetryDelay is the fixed delay between attempts. Default: 5s.
	RetryDelay time.Duration `yaml:"retryDelay"`

	// CallTimeout bounds a single invocation. Default: 2m.
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// CLIRunner runs the az CLI via exec with bounded retries.
type CLIRunner struct {
	cfg CLIConfig
}

// NewCLIRunner creates a runner with defaults applied.
func NewCLIRunner(cfg CLIConfig) *CLIRunner {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &CLIRunner{cfg: cfg}
}

// Run executes the CLI, retrying failed attempts with a fixed delay.
// The last attempt's stderr is attached to the returned error.
func (r *CLIRunner) Run(ctx context.Context, args ...string) (string, error) {
	var lastErr error
	var lastStderr string

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		stdout, stderr, err := r.runOnce(ctx, args)
		if err == nil {
			return stdout, nil
		}
		lastErr = err
		lastStderr = stderr

		logger.Warn(ctx, "az command failed",
			zap.Int("attempt", attempt),
			zap.Strings("args", args),
			zap.String("stderr", stderr),
			zap.Error(err),
		)

		if attempt == r.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(r.cfg.RetryDelay):
		case <-ctx.Done():
			return "", appErr.Wrap(ctx.Err(), appErr.Timeout)
		}
	}

	return "", appErr.Wrapf(lastErr, appErr.CloudCallFailed, "az %s failed", firstArg(args)).
		WithDetail("stderr", lastStderr)
}

func (r *CLIRunner) runOnce(ctx context.Context, args []string) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, r.cfg.Binary, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

var _ Runner = (*CLIRunner)(nil)
