package extract

import (
	"regexp"
	"strings"
)

var (
	spacesRe       = regexp.MustCompile(`[ \t]+`)
	newlinesRe     = regexp.MustCompile(`[\r\n]{2,}`)
	nonPrintableRe = regexp.MustCompile(`[^\x09\x0A\x0D\x20-\x7E]+`)
)

// Clean normalizes extracted text: non-breaking spaces become plain spaces,
// runs of spaces and newlines collapse, and non-printable characters are
// dropped. Chunking assumes its input has been through here.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, " ", " ")
	text = spacesRe.ReplaceAllString(text, " ")
	text = newlinesRe.ReplaceAllString(text, "\n")
	text = nonPrintableRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
