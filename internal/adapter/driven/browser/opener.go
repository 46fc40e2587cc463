// Package browser hands URLs to the desktop browser and runs the loopback
// redirect listener that receives OAuth authorization codes.
package browser

import (
	"fmt"

	clibrowser "github.com/cli/browser"

	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.URLOpener = Opener{}

// Opener opens URLs with the operating system's default handler.
type Opener struct{}

// Open launches the default browser for url. It returns once the launcher
// process has started.
func (Opener) Open(url string) error {
	if err := clibrowser.OpenURL(url); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return nil
}
