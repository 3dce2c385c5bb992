package commsutil

import (
	"fmt"
	"strings"
)

// Subject wildcards.
const (
	WildcardToken = "*"
	WildcardTail  = ">"
)

// SplitSubject returns the dot separated tokens of subject.
func SplitSubject(subject string) []string {
	if subject == "" {
		return nil
	}
	return strings.Split(subject, ".")
}

// JoinSubject builds a subject from tokens.
func JoinSubject(tokens ...string) string {
	return strings.Join(tokens, ".")
}

// IsWildcard reports whether subject contains a wildcard token.
func IsWildcard(subject string) bool {
	for _, tok := range SplitSubject(subject) {
		if tok == WildcardToken || tok == WildcardTail {
			return true
		}
	}
	return false
}

// ValidateSubject checks subject is a well formed COMMS subject. Wildcards are
// accepted only when allowWildcards is set, and ">" only as the last token.
func ValidateSubject(subject string, allowWildcards bool) error {
	tokens := SplitSubject(subject)
	if len(tokens) == 0 {
		return fmt.Errorf("subject must not be empty")
	}
	for i, tok := range tokens {
		switch {
		case tok == "":
			return fmt.Errorf("subject %q has an empty token", subject)
		case strings.ContainsAny(tok, " \t\r\n"):
			return fmt.Errorf("subject %q contains whitespace", subject)
		case tok == WildcardToken || tok == WildcardTail:
			if !allowWildcards {
				return fmt.Errorf("subject %q must not contain wildcards", subject)
			}
			if tok == WildcardTail && i != len(tokens)-1 {
				return fmt.Errorf("subject %q has %q before the last token", subject, WildcardTail)
			}
		case strings.ContainsAny(tok, WildcardToken+WildcardTail):
			return fmt.Errorf("subject %q has a wildcard inside token %q", subject, tok)
		}
	}
	return nil
}
