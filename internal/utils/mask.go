package utils

import "regexp"

var (
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	accountPattern = regexp.MustCompile(`\b\d{6,}\b`)
)

// MaskSensitive replaces emails, phone numbers and long digit runs with
// placeholder tags. Emails go first so their digits are not caught as phones,
// and bare digit runs of six or more are account numbers, not phones.
func MaskSensitive(s string) string {
	s = emailPattern.ReplaceAllString(s, "[EMAIL]")
	s = accountPattern.ReplaceAllString(s, "[ACCOUNT_NUM]")
	s = phonePattern.ReplaceAllString(s, "[PHONE]")
	return s
}
