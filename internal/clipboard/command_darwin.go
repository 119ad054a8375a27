//go:build darwin

package clipboard

import (
	"context"
	"os/exec"
	"strings"
)

// clearCommand empties the clipboard by piping nothing into pbcopy.
func clearCommand(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "pbcopy")
	cmd.Stdin = strings.NewReader("")
	return cmd.Run()
}
