//go:build linux

package clipboard

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// clearCommand empties the clipboard via whichever selection tool the
// session provides: wl-copy on Wayland, xclip/xsel on X11.
func clearCommand(ctx context.Context) error {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return exec.CommandContext(ctx, "wl-copy", "--clear").Run()
		}
	}

	if _, err := exec.LookPath("xclip"); err == nil {
		cmd := exec.CommandContext(ctx, "xclip", "-i", "-selection", "clipboard")
		cmd.Stdin = strings.NewReader("")
		return cmd.Run()
	}

	if _, err := exec.LookPath("xsel"); err == nil {
		return exec.CommandContext(ctx, "xsel", "-bc").Run()
	}

	return errors.New("no clipboard tool available (wl-copy, xclip, xsel)")
}
