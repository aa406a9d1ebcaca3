package crm

import (
	"strings"
	"time"
)

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// Quote renders s as a SOQL string literal.
func Quote(s string) string {
	return "'" + soqlEscaper.Replace(s) + "'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `%`, `\%`, `_`, `\_`)

// LikeContains renders a LIKE pattern matching values that contain s.
func LikeContains(s string) string {
	return "'%" + likeEscaper.Replace(s) + "%'"
}

// DateTimeLiteral renders t as an unquoted SOQL dateTime in UTC.
func DateTimeLiteral(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// IsRecordID reports whether s has the shape of a 15 or 18 character
// Salesforce id. Only such values are interpolated into REST paths.
func IsRecordID(s string) bool {
	if len(s) != 15 && len(s) != 18 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// IsAccountID is true for record ids carrying the Account key prefix.
func IsAccountID(s string) bool {
	return IsRecordID(s) && strings.HasPrefix(s, "001")
}

// IsAPIName accepts object and field API names such as Case_Summary__c.
func IsAPIName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9', r == '_':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
