package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyPDF = errors.New("pdf is empty")

// Page is the plain text of one 1-based PDF page.
type Page struct {
	Number int
	Text   string
}

func open(b []byte) (*pdf.Reader, error) {
	if len(b) == 0 {
		return nil, ErrEmptyPDF
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}
	return reader, nil
}

// CountPages returns the number of pages declared by the PDF.
func CountPages(b []byte) (int, error) {
	reader, err := open(b)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// ExtractPages returns the text of every page that has any. Pages without
// extractable text are skipped.
func ExtractPages(b []byte) ([]Page, error) {
	reader, err := open(b)
	if err != nil {
		return nil, err
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d failed: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
