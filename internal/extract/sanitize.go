package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Anything that is not a letter, digit, space, or one of , . / ( ) - – goes.
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}\s\p{Zs},./()\-–]`)

// Sanitize strips symbols and pictographs and trims the result.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return strings.TrimSpace(disallowed.ReplaceAllString(s, ""))
}

var (
	mdImage   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	lineBreak = regexp.MustCompile(`(?i)</?br\s*/?>`)
)

// flattenMarkup reduces inline markdown links and HTML in a cell to their
// visible text, so a cell like **[Acme](https://acme.io)** reads "Acme"
// instead of keeping the URL. Cells without markup are returned unchanged.
func flattenMarkup(cell string) string {
	out := cell
	if strings.Contains(out, "](") {
		out = mdImage.ReplaceAllString(out, "")
		out = mdLink.ReplaceAllString(out, "$1")
	}
	if strings.ContainsRune(out, '<') {
		out = htmlText(out)
	}
	return out
}

func htmlText(fragment string) string {
	fragment = lineBreak.ReplaceAllString(fragment, " ")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("script, style").Remove()
	return cleanText(doc.Text())
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
