package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// MaxPasswordBytes is the longest secret bcrypt accepts.
const MaxPasswordBytes = 72

// Password rule messages, in the order they are checked.
const (
	MsgPasswordLength    = "Password must be at least 8 characters long"
	MsgPasswordTooLong   = "Password must be at most 72 bytes long"
	MsgPasswordUppercase = "Password must contain at least one uppercase letter"
	MsgPasswordLowercase = "Password must contain at least one lowercase letter"
	MsgPasswordDigit     = "Password must contain at least one number"
	MsgPasswordSymbol    = "Password must contain at least one special character"
)

// ValidateEmail checks the local@domain.tld shape.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

type passwordRule struct {
	ok  func(string) bool
	msg string
}

var passwordRules = []passwordRule{
	{func(s string) bool { return utf8.RuneCountInString(s) >= 8 }, MsgPasswordLength},
	{func(s string) bool { return len(s) <= MaxPasswordBytes }, MsgPasswordTooLong},
	{func(s string) bool { return strings.IndexFunc(s, isUpperASCII) >= 0 }, MsgPasswordUppercase},
	{func(s string) bool { return strings.IndexFunc(s, isLowerASCII) >= 0 }, MsgPasswordLowercase},
	{func(s string) bool { return strings.IndexFunc(s, isDigitASCII) >= 0 }, MsgPasswordDigit},
	{func(s string) bool { return strings.ContainsAny(s, passwordSymbols) }, MsgPasswordSymbol},
}

func isUpperASCII(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLowerASCII(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigitASCII(r rune) bool { return r >= '0' && r <= '9' }

// ValidatePassword returns false and the first violated rule's message when
// s does not meet the strength policy.
func ValidatePassword(s string) (bool, string) {
	for _, rule := range passwordRules {
		if !rule.ok(s) {
			return false, rule.msg
		}
	}
	return true, ""
}
