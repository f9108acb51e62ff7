// Package export copies assistant text to the local clipboard. Hosts
// without a clipboard (headless servers, containers) fail soft with a
// message the caller can show as a notice.
package export

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// CopyText places text on the host clipboard.
func CopyText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not available in this environment, copy the text manually")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	return nil
}
