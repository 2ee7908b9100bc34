package resolve

import (
	"regexp"
	"strings"
)

// streetAbbrev maps spelled-out street types (and common address tokens) to
// the abbreviated forms used on file. Voice transcription tends to produce
// the long forms.
var streetAbbrev = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"road":      "rd",
	"drive":     "dr",
	"lane":      "ln",
	"boulevard": "blvd",
	"court":     "ct",
	"place":     "pl",
	"circle":    "cir",
	"terrace":   "ter",
	"parkway":   "pkwy",
	"highway":   "hwy",
	"trail":     "trl",
	"way":       "way",
	"apartment": "apt",
	"suite":     "ste",
	"unit":      "unit",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
	"northeast": "ne",
	"northwest": "nw",
	"southeast": "se",
	"southwest": "sw",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeAddress standardizes an address string for matching by:
//  1. Trimming whitespace and lowercasing
//  2. Stripping punctuation (commas, periods, dashes, pound signs)
//  3. Abbreviating street types and compass directions
//  4. Collapsing multiple spaces into single spaces
//
// It is applied identically to the spoken query and every candidate address
// so both sides converge on the same canonical form.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}

	addr = strings.NewReplacer(
		",", " ",
		".", "",
		"#", " ",
		"-", " ",
		"'", "",
		"\"", "",
	).Replace(addr)

	words := strings.Fields(addr)
	for i, w := range words {
		if abbr, ok := streetAbbrev[w]; ok {
			words[i] = abbr
		}
	}
	addr = strings.Join(words, " ")

	addr = multiSpaceRe.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}
