package notify

import (
	"fmt"
	"os"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
	"github.com/pfrederiksen/labordata/internal/manifest"
)

// Twitter posts new dataset captures to Twitter
type Twitter struct {
	client *twitter.Client
}

// NewTwitter creates a new Twitter notifier using environment variables
// Required environment variables:
// - TWITTER_API_KEY
// - TWITTER_API_SECRET
// - TWITTER_ACCESS_TOKEN
// - TWITTER_ACCESS_SECRET
func NewTwitter() (*Twitter, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_SECRET")

	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials in environment variables")
	}

	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := config.Client(oauth1.NoContext, token)
	client := twitter.NewClient(httpClient)

	return &Twitter{client: client}, nil
}

// Notify posts a tweet for each new capture
func (n *Twitter) Notify(entries []manifest.Entry) error {
	for i, e := range entries {
		tweet := formatTweet(e)

		_, _, err := n.client.Statuses.Update(tweet, nil)
		if err != nil {
			return fmt.Errorf("failed to post tweet for %s: %w", e.Name, err)
		}

		// Rate limiting: wait between tweets
		if i < len(entries)-1 {
			time.Sleep(2 * time.Second)
		}
	}

	return nil
}

// formatTweet formats a manifest entry as a tweet
func formatTweet(e manifest.Entry) string {
	tweet := "📊 New labor dataset captured!\n\n"
	tweet += fmt.Sprintf("📁 %s (%s)\n", e.Name, e.Group)

	if e.DetectedDate != "" {
		tweet += fmt.Sprintf("📅 %s\n", e.DetectedDate)
	}

	if e.SourceURL != "" {
		tweet += fmt.Sprintf("\n🔗 %s\n", e.SourceURL)
	}

	tweet += "\n#LaborData #OpenData"

	// Twitter limit is 280 characters
	if len(tweet) > 280 {
		// Truncate and add ellipsis
		tweet = tweet[:277] + "..."
	}

	return tweet
}
