package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/openregistry/consulta/models"
)

// blockTags are elements that terminate a visual line. Table cells are
// included because the certificate page lays labels and values out in cells.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "table": {}, "tr": {}, "td": {}, "th": {},
	"li": {}, "ul": {}, "ol": {}, "section": {}, "article": {},
	"header": {}, "footer": {}, "form": {}, "fieldset": {}, "label": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// Lines flattens an HTML document into the visible text lines the browser
// would render, suitable for Extract. Scripts and styles are dropped; block
// elements and <br> become line breaks. Input that does not parse as HTML
// degrades to a plain line split.
func Lines(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return splitLines(rawHTML)
	}
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return splitLines(rawHTML)
	}

	var b strings.Builder
	for _, n := range body.Nodes {
		writeText(&b, n)
	}
	return splitLines(b.String())
}

// ExtractHTML is Extract over an HTML dump instead of pre-rendered text.
// Used to reprocess saved result pages.
func ExtractHTML(rawHTML string) *models.RegistryRecord {
	return Extract(strings.Join(Lines(rawHTML), "\n"))
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode {
		if _, block := blockTags[n.Data]; block {
			b.WriteByte('\n')
		}
	}
}
