package mapper

import (
	"slices"
	"strings"
	"unicode/utf8"

	goahocorasick "github.com/anknown/ahocorasick"
)

const (
	filteredMarker  = "[FILTERED]"
	truncatedMarker = "..."
)

var (
	sensitiveWords = []string{"password", "token", "/login", "/register"}
	sensitiveVerbs = map[string]struct{}{
		"login":    {},
		"register": {},
		"op":       {},
		"deop":     {},
	}
)

// Redactor recognises commands that carry credentials or grant operator rights.
type Redactor struct {
	matcher *goahocorasick.Machine
}

func NewRedactor() (*Redactor, error) {
	words := slices.Clone(sensitiveWords)
	slices.Sort(words)
	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = []rune(w)
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Redactor{matcher: m}, nil
}

// Sensitive matches case-insensitively on the whole command text and on its
// verb, with or without the leading slash or a namespace prefix.
func (r *Redactor) Sensitive(command string) bool {
	lower := strings.ToLower(command)
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	if _, ok := sensitiveVerbs[verb(fields[0])]; ok {
		return true
	}
	return len(r.matcher.MultiPatternSearch([]rune(lower), true)) > 0
}

// Redact keeps the verb of a sensitive command and drops its arguments.
// Commands without arguments are returned as is.
func (r *Redactor) Redact(command string) string {
	fields := strings.Fields(command)
	if len(fields) < 2 || !r.Sensitive(command) {
		return command
	}
	return fields[0] + " " + filteredMarker
}

func verb(word string) string {
	word = strings.TrimPrefix(word, "/")
	if i := strings.LastIndexByte(word, ':'); i >= 0 {
		word = word[i+1:]
	}
	return word
}

// Truncate shortens s to at most max runes, ending it with "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= len(truncatedMarker) {
		return string(runes[:max])
	}
	return string(runes[:max-len(truncatedMarker)]) + truncatedMarker
}
