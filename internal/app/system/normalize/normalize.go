// Package normalize holds small input-normalization helpers shared by the
// stores and handlers.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name collapses interior runs of whitespace and trims the ends.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameCI returns the case/diacritic-insensitive form used for *_ci fields.
func NameCI(s string) string {
	return text.Fold(Name(s))
}

// ReferralCode trims and uppercases a referral code as typed by a user.
func ReferralCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Status lowercases and trims a status tag.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
