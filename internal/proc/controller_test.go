package proc

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
)

func TestRuntimeControllerRejectsEmptyID(t *testing.T) {
	c := NewRuntimeController("docker", zerolog.Nop())
	if err := c.Restart(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestRuntimeControllerRunsRestartVerb(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/true")
	}
	// "true restart <id>" exits 0, standing in for an accepting runtime
	c := NewRuntimeController("true", zerolog.Nop())
	if err := c.Restart(context.Background(), "llama-swap"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	c = NewRuntimeController("false", zerolog.Nop())
	if err := c.Restart(context.Background(), "llama-swap"); err == nil {
		t.Fatalf("expected error from failing runtime")
	}
}

func TestLaunchMissingBinary(t *testing.T) {
	l := &Launcher{Bin: "/nonexistent/llama-swap", Log: zerolog.Nop()}
	if _, err := l.Launch(context.Background(), "/app/config.yaml", nil); err == nil {
		t.Fatalf("expected launch error")
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("nil should map to 0")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Fatalf("plain error should map to 1")
	}
	if runtime.GOOS != "windows" {
		cmd := exec.Command("false")
		err := cmd.Run()
		if got := ExitCode(err); got != 1 {
			t.Fatalf("false exit code: %d", got)
		}
	}
}
