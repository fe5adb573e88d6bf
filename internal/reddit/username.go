package reddit

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidUsername is returned when no username can be extracted from input.
var ErrInvalidUsername = errors.New("invalid reddit username or profile URL")

// Patterns are tried in order; the first capture wins.
var usernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/u/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/user/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`reddit\.com/u/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`reddit\.com/user/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^([A-Za-z0-9_-]+)$`),
}

// ParseUsername extracts a username from a profile URL such as
// https://www.reddit.com/user/spez/ or u/spez, or accepts a bare username.
func ParseUsername(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "u/") || strings.HasPrefix(input, "user/") {
		input = "/" + input
	}
	for _, re := range usernamePatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", ErrInvalidUsername
}
