// Package phone derives lookup candidates for WhatsApp ids.
//
// Brazilian mobile numbers may reach us with or without the ninth digit that
// was added to mobile lines, so a stored contact can differ from the incoming
// wa_id by that single digit.
package phone

import "strings"

const brazilPrefix = "55"

// Alternate returns the other form of a Brazilian mobile number. The second
// result is false when waID is not Brazilian or the national number has no
// known variant.
func Alternate(waID string) (string, bool) {
	if !strings.HasPrefix(waID, brazilPrefix) || len(waID) < 4 {
		return "", false
	}

	area := waID[2:4]
	rest := waID[4:]

	switch {
	case len(rest) == 9 && rest[0] == '9':
		return brazilPrefix + area + rest[1:], true
	case len(rest) == 8:
		return brazilPrefix + area + "9" + rest, true
	default:
		return "", false
	}
}

// Candidates lists the ids to try in lookup order: the number itself first,
// then its alternate when one exists.
func Candidates(waID string) []string {
	if alt, ok := Alternate(waID); ok {
		return []string{waID, alt}
	}
	return []string{waID}
}
