package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// DefaultMinCodeLength is the client-side minimum invite code length.
const DefaultMinCodeLength = 5

// InviteCode is an opaque invite string. Only its length is checked locally;
// the enrollment service performs the authoritative validation.
type InviteCode string

// ParseInviteCode trims raw and checks it against minLen (DefaultMinCodeLength
// when minLen <= 0).
func ParseInviteCode(raw string, minLen int) (InviteCode, error) {
	if minLen <= 0 {
		minLen = DefaultMinCodeLength
	}
	code := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(code); n < minLen {
		return "", fmt.Errorf("%w: need at least %d characters, got %d", ErrInvalidCodeFormat, minLen, n)
	}
	return InviteCode(code), nil
}

// ParseDeepLink extracts the invite code from an invitation link such as
// https://host/register?invite=<id>&code=<code>. The code parameter wins, then
// invite, then the last path segment.
func ParseDeepLink(link string, minLen int) (InviteCode, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("%w: malformed link: %v", ErrInvalidCodeFormat, err)
	}
	q := u.Query()
	for _, key := range []string{"code", "invite_code", "invite"} {
		if v := q.Get(key); v != "" {
			return ParseInviteCode(v, minLen)
		}
	}
	last := path.Base(u.Path)
	if last == "." || last == "/" || last == "register" {
		last = ""
	}
	return ParseInviteCode(last, minLen)
}

// String returns the code as entered.
func (c InviteCode) String() string { return string(c) }

// Masked renders the code for logs without exposing it.
func (c InviteCode) Masked() string {
	if c == "" {
		return ""
	}
	r := []rune(string(c))
	if len(r) <= 2 {
		return "***"
	}
	return string(r[:2]) + "***"
}
