// Package extract pulls page-oriented plain text out of uploaded
// documents. PDF and DOCX are supported; each document becomes an
// ordered list of page texts that the ingestion pipeline chunks and
// embeds.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file types we cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnreadable is returned when a document of a supported format
	// cannot be parsed.
	ErrUnreadable = errors.New("document unreadable")
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Document is the extraction result. Pages preserves source order;
// entries may be empty when a page contains no extractable text
// (scanned or image-only pages).
type Document struct {
	Name  string
	Pages []string
}

// DetectFormat maps a filename to its Format by extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// Extract parses data as the format implied by filename.
func Extract(filename string, data []byte) (*Document, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var pages []string
	switch format {
	case FormatPDF:
		pages, err = extractPDF(data)
	case FormatDOCX:
		pages, err = extractDOCX(data)
	}
	if err != nil {
		return nil, err
	}

	return &Document{Name: filepath.Base(filename), Pages: pages}, nil
}

// HasText reports whether any page carries extractable text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
