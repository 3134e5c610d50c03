package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DeriveLogin builds the base login identifier "first.last" from a member's names.
// Accents are folded and anything outside [a-z0-9] is dropped.
func DeriveLogin(firstName, lastName string) string {
	first := loginPart(firstName)
	last := loginPart(lastName)
	switch {
	case first == "" && last == "":
		return "member"
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + "." + last
	}
}

// LoginCandidate returns the n-th candidate for a base login: base, base2, base3, ...
func LoginCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + strconv.Itoa(n)
}

func loginPart(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
