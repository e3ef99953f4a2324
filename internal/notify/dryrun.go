package notify

import (
	"fmt"

	"github.com/pfrederiksen/labordata/internal/manifest"
)

// DryRun prints what would be posted without actually posting
type DryRun struct{}

// NewDryRun creates a new dry-run notifier
func NewDryRun() *DryRun {
	return &DryRun{}
}

// Notify prints the posts that would be published
func (n *DryRun) Notify(entries []manifest.Entry) error {
	for i, e := range entries {
		post := formatTweet(e)
		fmt.Printf("--- Post %d/%d ---\n", i+1, len(entries))
		fmt.Println(post)
		fmt.Printf("\n(Length: %d characters)\n\n", len(post))
	}
	return nil
}
