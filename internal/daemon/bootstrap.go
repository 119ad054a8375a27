package daemon

import (
	"context"
	"os"
	"os/exec"
)

// SpawnDaemon starts the daemon process detached from the caller via the
// hidden serve command. Returns the new PID.
func SpawnDaemon() (int, error) {
	return spawnDetached("serve")
}

// SpawnHelper starts the dedicated offscreen helper process detached.
// The helper connects back to the hub as an offscreen session.
func SpawnHelper() (int, error) {
	return spawnDetached("helper")
}

func spawnDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(executable, args...)
	detachProcess(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap the child when it exits so detached helpers never zombie.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// AuxProcessClearer hosts the clear primitive in a short-lived helper
// process that runs once and exits. The process is killed when the
// context's grace period elapses, confirmed success or not.
type AuxProcessClearer struct{}

// ClearOnce runs the one-shot helper within ctx.
func (a *AuxProcessClearer) ClearOnce(ctx context.Context) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, executable, "helper", "--once").Run()
}
