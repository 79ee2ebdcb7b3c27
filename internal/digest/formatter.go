package digest

import (
	"fmt"
	"strings"

	"github.com/user/reddit-digest-bot/internal/reddit"
)

// FormatDigest renders the digest message for one subreddit: a header line
// naming the subreddit, then one title/link block per post. An empty post
// list still yields the header so the user knows the week was quiet.
func FormatDigest(subreddit string, posts []reddit.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly popular posts from: %q\n\n", subreddit)

	for _, post := range posts {
		fmt.Fprintf(&b, "%s\n%s\n\n", post.Title, post.Link)
	}

	return b.String()
}
