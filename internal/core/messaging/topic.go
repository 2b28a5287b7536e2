package messaging

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchTopic reports whether topic passes filter.
//
// An empty filter or "*" matches everything. Filters containing glob
// characters are matched with doublestar ("sensor/*", "arm/**"). Anything
// else is a prefix match, which is how SUB sockets filter.
func MatchTopic(filter, topic string) bool {
	if filter == "" || filter == "*" {
		return true
	}
	if strings.ContainsAny(filter, "*?[{") {
		ok, err := doublestar.Match(filter, topic)
		return err == nil && ok
	}
	return strings.HasPrefix(topic, filter)
}
