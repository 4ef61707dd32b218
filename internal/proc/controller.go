// Package proc issues lifecycle commands against the externally managed
// model-serving process. The container runtime owns actual process state;
// this package only launches and asks for restarts.
package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// Controller restarts a managed process identified by name. The call blocks
// until the runtime has accepted the request, not until the process is
// healthy again.
type Controller interface {
	Restart(ctx context.Context, id string) error
}

// RuntimeController restarts processes through a container runtime CLI
// (docker, podman, nerdctl — anything with a `restart <name>` verb).
type RuntimeController struct {
	Bin string
	Log zerolog.Logger
}

// NewRuntimeController returns a Controller shelling out to bin.
func NewRuntimeController(bin string, log zerolog.Logger) *RuntimeController {
	return &RuntimeController{Bin: bin, Log: log}
}

func (c *RuntimeController) Restart(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("empty process id")
	}
	c.Log.Info().Str("runtime", c.Bin).Str("process", id).Msg("issuing restart")
	cmd := exec.CommandContext(ctx, c.Bin, "restart", id)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s restart %s: %w: %s", c.Bin, id, err, string(out))
	}
	return nil
}

// Launcher starts the managed process with inherited stdio.
type Launcher struct {
	Bin string
	Log zerolog.Logger
}

// Launch starts bin with the config path argument followed by any
// caller-supplied extra args, passed through unchanged. The returned Cmd is
// already started; callers wait on it for the managed process's lifetime.
func (l *Launcher) Launch(ctx context.Context, configPath string, extraArgs []string) (*exec.Cmd, error) {
	args := append([]string{"-config", configPath}, extraArgs...)
	cmd := exec.CommandContext(ctx, l.Bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	l.Log.Info().Str("bin", l.Bin).Strs("args", args).Msg("launching managed process")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Bin, err)
	}
	return cmd, nil
}

// ExitCode maps a Wait error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 1
}
