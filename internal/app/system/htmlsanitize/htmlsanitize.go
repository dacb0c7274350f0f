// Package htmlsanitize strips unsafe HTML from applicant-supplied text.
//
// Application data, verification-request messages, and review notes are
// free-form strings typed by users and later shown to admins; everything that
// goes into the store passes through Sanitize first.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.UGCPolicy()

// Sanitize removes scripts, event handlers, and dangerous URLs while keeping
// basic user-generated-content markup.
func Sanitize(s string) string {
	return policy.Sanitize(s)
}

// SanitizeMap sanitizes every value of a free-form field map in place and
// returns it.
func SanitizeMap(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = Sanitize(v)
	}
	return m
}
