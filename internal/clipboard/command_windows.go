//go:build windows

package clipboard

import (
	"context"
	"os/exec"
	"strings"
)

// clearCommand empties the clipboard via cmd's clip with empty stdin.
// clip accepts an empty pipe, unlike the legacy copy mechanisms that
// refuse empty selections.
func clearCommand(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "cmd", "/c", "clip")
	cmd.Stdin = strings.NewReader("")
	return cmd.Run()
}
