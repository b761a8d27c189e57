// Package util holds small string helpers shared across packages.
package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	separatorRe  = regexp.MustCompile(`[\s_/.]+`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}-]`)
	dashRunRe    = regexp.MustCompile(`-{2,}`)
)

// Slug reduces s to lower-case letters, digits and single dashes.
// Non-ASCII letters are kept; input is NFC-normalized first so composed and
// decomposed accents produce the same slug.
//
//	"Slow Burn"      -> "slow-burn"
//	"sci_fi/fantasy" -> "sci-fi-fantasy"
//	"Ficção!"        -> "ficção"
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
	s = separatorRe.ReplaceAllString(s, "-")
	s = disallowedRe.ReplaceAllString(s, "")
	s = dashRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
