package dialog

import (
	"sort"
	"strings"
)

// NormalizeSubredditNames parses free-form user input into subreddit names:
// split on any whitespace (spaces, tabs, newlines), strip one leading "r/" or
// "/r/" marker, de-duplicate, and sort. Case is preserved.
func NormalizeSubredditNames(input string) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)

	for _, field := range strings.Fields(input) {
		name := strings.TrimPrefix(field, "/")
		name = strings.TrimPrefix(name, "r/")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
