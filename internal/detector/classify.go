package detector

import (
	"strings"

	"github.com/samber/lo"
)

// FieldInfo describes the paste target element as observed by the host
// surface. Zero values mean the attribute/signal is absent.
type FieldInfo struct {
	// InputType is the element's type attribute, e.g. "password".
	InputType string
	// Autocomplete is the element's autocomplete attribute value.
	Autocomplete string
	// TextSecurity is the computed text-security CSS value, set when the
	// field renders masked characters.
	TextSecurity string
}

// Narrow rule set only. Name/id substring heuristics are deliberately
// excluded: they false-positive on non-password fields.
var (
	passwordAutocomplete = []string{"current-password", "new-password", "one-time-code"}
	maskedTextSecurity   = []string{"disc", "circle", "square"}
)

// IsPasswordField classifies the field using the narrow rule set: exact
// password input type, credential autocomplete values, or a masked-text
// rendering signal.
func (f FieldInfo) IsPasswordField() bool {
	if strings.EqualFold(f.InputType, "password") {
		return true
	}
	if lo.Contains(passwordAutocomplete, strings.ToLower(f.Autocomplete)) {
		return true
	}
	return lo.Contains(maskedTextSecurity, strings.ToLower(f.TextSecurity))
}

// IsBlank reports whether pasted text is empty or all-whitespace. Blank
// pastes never produce a detection event.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
