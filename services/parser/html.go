package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/customeros/mailingest/internal/utils"
)

// htmlToText is a best-effort tag strip used when a message carries no text/plain part.
func htmlToText(html string, maxLen int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DecodeErrorPlaceholder
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	text := strings.Join(strings.Fields(doc.Text()), " ")
	return utils.TruncateRunes(text, maxLen)
}
