package domain

import (
	"regexp"
	"strings"
)

// The persisted shipping address stores street, number and addition as one
// free-text line. Splitting it back is heuristic: a street name ending in a
// number ("Plein 40-45") can mis-split. The cascade tries the most specific
// shape first and falls back to the whole string as street with an empty
// number.
var streetPatterns = []*regexp.Regexp{
	// "Hoofdstraat 12 A": number, space, suffix
	regexp.MustCompile(`^(.+?)\s+(\d+)\s+([A-Za-z][A-Za-z0-9-]*)$`),
	// "Hoofdstraat 12A": number and suffix glued together
	regexp.MustCompile(`^(.+?)\s+(\d+)([A-Za-z][A-Za-z0-9-]*)$`),
	// "Hoofdstraat 12": number only
	regexp.MustCompile(`^(.+?)\s+(\d+)$`),
}

type StreetAddress struct {
	Street      string
	HouseNumber string
	Addition    string
}

// ParseStreetAddress splits a free-text street line. First matching pattern
// wins; no match returns the input as street with empty number and addition.
func ParseStreetAddress(line string) StreetAddress {
	line = strings.TrimSpace(line)

	for _, p := range streetPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			out := StreetAddress{Street: m[1], HouseNumber: m[2]}
			if len(m) > 3 {
				out.Addition = m[3]
			}
			return out
		}
	}

	return StreetAddress{Street: line}
}

// SplitName breaks a full name on whitespace: first token is the first
// name, the remainder the last name. Lossy for multi-word first names.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
