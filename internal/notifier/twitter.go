package notifier

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
)

const (
	tweetLimit = 280
	tweetMore  = "...\n"
)

// TwitterCredentials are the OAuth1 user-context keys.
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Complete reports whether every credential is set.
func (c TwitterCredentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// Twitter posts a short summary status per message.
type Twitter struct {
	client *twitter.Client
}

// NewTwitter creates a Twitter notifier.
func NewTwitter(creds TwitterCredentials) (*Twitter, error) {
	if !creds.Complete() {
		return nil, fmt.Errorf("missing required Twitter credentials")
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(oauth1.NoContext, token)

	return &Twitter{client: twitter.NewClient(httpClient)}, nil
}

// Notify posts one status for the message.
func (n *Twitter) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := n.client.Statuses.Update(formatTweet(msg), nil); err != nil {
		return fmt.Errorf("posting tweet for %s: %w", msg.Site, err)
	}
	return nil
}

// formatTweet condenses a message to the dates and the reservation link.
// When the dates do not fit, trailing dates are replaced by "..." and the
// link is kept.
func formatTweet(msg Message) string {
	name := msg.DisplayName
	if name == "" {
		name = msg.Site
	}
	header := fmt.Sprintf("🏕️ %sに空きが出ました\n\n", name)
	footer := ""
	if msg.Link != "" {
		footer = "\n🔗 " + msg.Link
	}

	budget := tweetLimit - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer)
	reserve := utf8.RuneCountInString(tweetMore)

	var body strings.Builder
	used := 0
	for i, r := range msg.Records {
		line := fmt.Sprintf("%s %s(%s) %s\n", Marker(r.Level), r.Date, r.WeekdayJP(), r.Status)
		n := utf8.RuneCountInString(line)
		need := n
		if i < len(msg.Records)-1 {
			need += reserve
		}
		if used+need > budget {
			body.WriteString(tweetMore)
			break
		}
		body.WriteString(line)
		used += n
	}

	tweet := header + body.String() + footer
	if runes := []rune(tweet); len(runes) > tweetLimit {
		tweet = string(runes[:tweetLimit-3]) + "..."
	}
	return tweet
}
