package reddit

import (
	"errors"
	"testing"
)

func TestParseUsername(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"spez", "spez"},
		{"  spez  ", "spez"},
		{"Some_User-99", "Some_User-99"},
		{"https://www.reddit.com/user/spez/", "spez"},
		{"https://reddit.com/u/spez", "spez"},
		{"reddit.com/user/kn0thing?sort=new", "kn0thing"},
		{"https://old.reddit.com/u/spez/comments", "spez"},
		{"/u/spez", "spez"},
		{"u/spez", "spez"},
		{"user/spez", "spez"},
	}
	for _, tt := range tests {
		got, err := ParseUsername(tt.input)
		if err != nil {
			t.Errorf("ParseUsername(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUsername(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseUsernameInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not a user", "https://example.com/r/golang", "spez!"} {
		if _, err := ParseUsername(input); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("ParseUsername(%q) expected ErrInvalidUsername, got %v", input, err)
		}
	}
}
