package azure_test

import (
	"context"
	"testing"
	"time"

	"azsnap/internal/azure"
	appErr "azsnap/pkg/errors"
)

func TestCLIRunnerSuccess(t *testing.T) {
	t.Parallel()
	runner := azure.NewCLIRunner(azure.CLIConfig{Binary: "echo"})

	out, err := runner.Run(context.Background(), "account", "show")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if out != "account show" {
		t.Fatalf("unexpected stdout: %q", out)
	}
}

func TestCLIRunnerRetriesThenFails(t *testing.T) {
	t.Parallel()
	runner := azure.NewCLIRunner(azure.CLIConfig{
		Binary:      "false",
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})

	start := time.Now()
	_, err := runner.Run(context.Background(), "snapshot", "create")
	if !appErr.Is(err, appErr.CloudCallFailed) {
		t.Fatalf("expected CloudCallFailed, got %v", err)
	}
	// Two attempts with one delay in between.
	if time.Since(start) > time.Second {
		t.Fatalf("retries took too long")
	}
}

func TestCLIRunnerCanceledContext(t *testing.T) {
	t.Parallel()
	runner := azure.NewCLIRunner(azure.CLIConfig{
		Binary:      "false",
		MaxAttempts: 3,
		RetryDelay:  time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, "vm", "show"); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}
