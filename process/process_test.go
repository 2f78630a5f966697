package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/process"
	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/resilience"
)

func TestRunEcho(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "echo",
		Args:   []string{"hello", "world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if out := strings.TrimSpace(string(result.Stdout)); out != "hello world" {
		t.Errorf("expected 'hello world', got %q", out)
	}
}

func TestRunStdin(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "cat",
		Stdin:  strings.NewReader("RIFF"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Stdout) != "RIFF" {
		t.Errorf("expected RIFF, got %q", result.Stdout)
	}
}

func TestRunFailureCarriesStderrTail(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo banner >&2; echo 'pipe:0: Invalid data found when processing input' >&2; exit 1"},
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", result.ExitCode)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("expected stderr in error, got %v", err)
	}
	if tail := result.StderrTail(1); tail != "pipe:0: Invalid data found when processing input" {
		t.Errorf("unexpected tail %q", tail)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := process.Run(ctx, process.Command{
		Binary:      "sleep",
		Args:        []string{"10"},
		GracePeriod: 500 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error from context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
	if result.Duration > 5*time.Second {
		t.Errorf("process took too long to kill: %v", result.Duration)
	}
}

func TestRunEmptyBinary(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestRunEnv(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo $MEETSCRIBE_TEST_VAR"},
		Env:    []string{"MEETSCRIBE_TEST_VAR=hello123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := strings.TrimSpace(string(result.Stdout)); out != "hello123" {
		t.Errorf("expected 'hello123', got %q", out)
	}
}

func TestLookPath(t *testing.T) {
	if err := process.LookPath("sh"); err != nil {
		t.Errorf("expected sh on PATH, got %v", err)
	}
	if err := process.LookPath("definitely-not-a-binary-xyz"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestRunnerWithoutResilience(t *testing.T) {
	var runner *process.Runner
	result, err := runner.Run(context.Background(), process.Command{Binary: "echo", Args: []string{"ok"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(result.Stdout)) != "ok" {
		t.Errorf("expected ok, got %q", result.Stdout)
	}
}

func TestRunnerCircuitBreakerTrips(t *testing.T) {
	runner := process.NewRunner(provider.ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			Name:             "ffmpeg",
			MaxFailures:      2,
			Timeout:          time.Minute,
			HalfOpenMaxCalls: 1,
		},
	})
	for i := 0; i < 2; i++ {
		if _, err := runner.Run(context.Background(), process.Command{Binary: "false"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := runner.Run(context.Background(), process.Command{Binary: "false"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != apperrors.ErrCodeServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %s", appErr.Code)
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen in chain, got %v", err)
	}
}

func TestRunnerBulkheadBoundsConcurrency(t *testing.T) {
	runner := process.NewRunner(provider.ResilienceConfig{
		Bulkhead: &resilience.BulkheadConfig{Name: "ffmpeg", MaxConcurrent: 1, MaxWait: 10 * time.Millisecond},
	})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := runner.Run(context.Background(), process.Command{Binary: "sleep", Args: []string{"0.5"}})
		done <- err
	}()
	<-started
	time.Sleep(100 * time.Millisecond)

	_, err := runner.Run(context.Background(), process.Command{Binary: "echo"})
	if !errors.Is(err, resilience.ErrBulkheadTimeout) && !errors.Is(err, resilience.ErrBulkheadFull) {
		t.Errorf("expected bulkhead rejection, got %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("first run failed: %v", err)
	}
}
