package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_|\s]`)

// Sanitize strips everything but letters, digits, dashes, underscores, pipes and whitespace.
func Sanitize(input string) string {
	return strings.TrimSpace(unsafeNameChars.ReplaceAllString(input, ""))
}

// DisplayName is the name a ctf is stored, announced and looked up under.
func DisplayName(title string, start time.Time) string {
	return Sanitize(title) + " - " + strconv.Itoa(start.Year())
}

func YearFromName(name string) (int, error) {
	idx := strings.LastIndex(name, " - ")
	if idx < 0 {
		return 0, fmt.Errorf("no year in ctf name %q", name)
	}
	return strconv.Atoi(strings.TrimSpace(name[idx+3:]))
}

// Truncate cuts s to at most max runes, ending with "..." when something was cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
