// Package extract pulls plain text out of downloaded documents. PPLS labels
// are overwhelmingly PDFs; the handful of HTML labels are handled too.
package extract

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"

	"ppls/internal/util"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Detect picks the extraction format from a locator's extension.
func Detect(locator string) Format {
	switch strings.ToLower(path.Ext(locator)) {
	case ".htm", ".html":
		return FormatHTML
	default:
		return FormatPDF
	}
}

// Sample extracts text from at most maxPages pages, for the quality gate.
// maxPages <= 0 means no cap.
func Sample(data []byte, format Format, maxPages int) (string, error) {
	switch format {
	case FormatHTML:
		return htmlText(data)
	default:
		return pdfText(data, maxPages)
	}
}

// Full extracts the whole document and normalizes line endings. It never
// fails: any extraction error yields "", which the pipeline treats as a
// skip.
func Full(data []byte, format Format) string {
	text, err := Sample(data, format, 0)
	if err != nil {
		return ""
	}
	return util.NormalizeNewlines(text)
}

func pdfText(data []byte, maxPages int) (text string, err error) {
	// The pdf library panics on some malformed xref tables; an item failure
	// must stay inside the item, so convert that into an ordinary error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := reader.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()
	return doc.Text(), nil
}
