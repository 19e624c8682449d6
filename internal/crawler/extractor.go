package crawler

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LDJSONType is the media type of embedded JSON-LD script blocks
const LDJSONType = "application/ld+json"

// ExtractBlocks returns the raw text of every JSON-LD script element in
// document order. A document without any block yields an empty slice.
func ExtractBlocks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	blocks := []string{}
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !isLDJSON(typ) {
			return
		}
		// script contents are raw text, so Text() returns them verbatim
		blocks = append(blocks, s.Text())
	})

	return blocks, nil
}

// isLDJSON matches the declared script type, ignoring case and parameters
func isLDJSON(typ string) bool {
	mediaType, _, err := mime.ParseMediaType(typ)
	if err != nil {
		mediaType = strings.TrimSpace(typ)
	}
	return strings.EqualFold(mediaType, LDJSONType)
}
