package notify

import (
	"github.com/pfrederiksen/labordata/internal/manifest"
)

// Notifier defines the interface for announcing newly captured datasets
type Notifier interface {
	// Notify posts announcements for the given captures
	Notify(entries []manifest.Entry) error
}
