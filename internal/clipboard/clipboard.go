// Package clipboard implements the clear primitive: make the system
// clipboard contain the empty string.
package clipboard

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// placeholder seeds the clipboard before a command-based clear. Some
// legacy clipboard backends refuse to copy a literal empty selection, so
// the fallback writes a minimal non-empty value and immediately forces it
// empty via the platform command.
const placeholder = " "

// Clear writes the empty string to the system clipboard. The modern
// primitive is tried first; on failure it falls back to the
// placeholder-then-force-empty sequence using platform commands.
func Clear(ctx context.Context) error {
	if !clipboard.Unsupported {
		if err := clipboard.WriteAll(""); err == nil {
			return nil
		}
		// Best-effort seed; the command clear below overwrites it.
		_ = clipboard.WriteAll(placeholder)
	}

	if err := clearCommand(ctx); err != nil {
		return fmt.Errorf("clipboard clear fallback: %w", err)
	}
	return nil
}
