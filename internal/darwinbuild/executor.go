package darwinbuild

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Executor runs external tools under a context. The child gets its own
// process group so cancellation reaches everything it spawned.
type Executor struct {
	Context context.Context
	Console *Console
}

func NewExecutor(ctx context.Context, c *Console) *Executor {
	return &Executor{Context: ctx, Console: c}
}

// Run starts cmd and waits for it. Unset stdio is wired to the process's own.
func (e *Executor) Run(cmd *exec.Cmd) error {
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	finalCmd := exec.CommandContext(e.Context, cmd.Path, cmd.Args[1:]...)
	finalCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		finalCmd.Env = cmd.Env
	} else {
		finalCmd.Env = os.Environ()
	}
	finalCmd.Stdin = cmd.Stdin
	finalCmd.Stdout = cmd.Stdout
	finalCmd.Stderr = cmd.Stderr
	finalCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	e.Console.Debugf("exec: %v\n", finalCmd.Args)
	if err := finalCmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	pgid := finalCmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-e.Context.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	if waitErr := finalCmd.Wait(); waitErr != nil {
		if e.Context.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %v", e.Context.Err())
		}
		return waitErr
	}
	return nil
}
