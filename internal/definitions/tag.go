package definitions

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// commitPrefixLength is the number of commit hash characters carried in a tag
const commitPrefixLength = 10

var hexPrefix = regexp.MustCompile(`^[0-9a-f]{10}`)

// TagSuffix derives an image tag from a commit hash and a point in time:
// the first 10 hex characters of the commit, a hyphen, and the UTC date.
// The same commit built on the same day always yields the same tag.
func TagSuffix(commit string, now time.Time) (string, error) {
	commit = strings.ToLower(strings.TrimSpace(commit))
	if !hexPrefix.MatchString(commit) {
		return "", fmt.Errorf("invalid commit hash %q: need at least %d hex characters", commit, commitPrefixLength)
	}

	return fmt.Sprintf("%s-%s", commit[:commitPrefixLength], now.UTC().Format("2006-01-02")), nil
}
