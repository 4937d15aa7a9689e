// Package loader extracts plain text from uploaded documents.
package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Format identifies how a document's bytes are decoded.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

var extFormats = map[string]Format{
	".txt":  FormatText,
	".text": FormatText,
	".md":   FormatText,
	".pdf":  FormatPDF,
}

// Document is the extracted text of a single file.
type Document struct {
	Name   string
	Format Format
	Text   string
}

// UnsupportedFormatError is returned for files whose extension has no
// known decoder.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file type for %q: no extension", e.Name)
	}
	return fmt.Sprintf("unsupported file type %q for %q", e.Ext, e.Name)
}

// FormatFor returns the format for a file name based on its extension.
func FormatFor(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	f, ok := extFormats[ext]
	if !ok {
		return "", &UnsupportedFormatError{Name: name, Ext: ext}
	}
	return f, nil
}

// Supported reports whether name has a loadable extension.
func Supported(name string) bool {
	_, err := FormatFor(name)
	return err == nil
}

// Load decodes data according to the extension of name. Empty or garbled
// input never fails; it yields empty or partial text.
func Load(name string, data []byte) (*Document, error) {
	format, err := FormatFor(name)
	if err != nil {
		return nil, err
	}
	return &Document{Name: name, Format: format, Text: Decode(format, data)}, nil
}

// LoadFile reads and decodes the file at path. The document name is the
// base name of path.
func LoadFile(path string) (*Document, error) {
	if _, err := FormatFor(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Load(filepath.Base(path), data)
}

// Decode converts raw bytes of the given format to text.
func Decode(format Format, data []byte) string {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	default:
		return strings.ToValidUTF8(string(data), "�")
	}
}

// extractPDF returns the text of every page that yields any, joined by
// newlines. Unreadable documents produce whatever was extracted so far.
func extractPDF(data []byte) (text string) {
	var pages []string
	defer func() {
		// The PDF parser panics on some malformed inputs.
		if r := recover(); r != nil {
			slog.Warn("pdf extraction aborted", "error", r)
			text = joinPages(pages)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("pdf unreadable", "error", err)
		return ""
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf page unreadable", "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}
	return joinPages(pages)
}

func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, strings.ToValidUTF8(p, "�"))
	}
	return strings.Join(kept, "\n")
}
