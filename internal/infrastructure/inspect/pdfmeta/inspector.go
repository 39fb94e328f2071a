// Package pdfmeta reads page counts from uploaded PDF attachments.
package pdfmeta

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

// PageCount returns 0 without error for non-PDF attachments.
func (i *Inspector) PageCount(ctx context.Context, mimeType string, data []byte) (pages int, err error) {
	if !isPDF(mimeType, data) {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func isPDF(mimeType string, data []byte) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == mimePDF {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
