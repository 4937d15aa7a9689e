package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadText(t *testing.T) {
	doc, err := Load("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, FormatText, doc.Format)
	assert.Equal(t, "hello world", doc.Text)
}

func TestLoadTextReplacesInvalidUTF8(t *testing.T) {
	doc, err := Load("bad.md", []byte{'a', 0xff, 0xfe, 'b'})
	require.NoError(t, err)
	assert.Equal(t, "a�b", doc.Text)
}

func TestLoadEmptyText(t *testing.T) {
	doc, err := Load("empty.txt", nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Text)
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("slides.pptx", []byte("x"))
	var ufe *UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, ".pptx", ufe.Ext)
	assert.Contains(t, err.Error(), "slides.pptx")

	_, err = Load("README", []byte("x"))
	require.True(t, errors.As(err, &ufe))
	assert.Contains(t, err.Error(), "no extension")
}

func TestFormatForIsCaseInsensitive(t *testing.T) {
	f, err := FormatFor("Syllabus.PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.True(t, Supported("a.TXT"))
	assert.False(t, Supported("a.docx"))
}

func TestLoadGarbledPDF(t *testing.T) {
	doc, err := Load("broken.pdf", []byte("%PDF-1.4 not really a pdf"))
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, doc.Format)
	assert.Empty(t, doc.Text)
}

func TestJoinPagesSkipsEmpty(t *testing.T) {
	got := joinPages([]string{"page one", "", "   \n", "page three"})
	assert.Equal(t, "page one\npage three", got)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lecture.txt")
	require.NoError(t, os.WriteFile(path, []byte("lecture text"), 0644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lecture.txt", doc.Name)
	assert.Equal(t, "lecture text", doc.Text)

	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestLoadMultiPagePDF(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "lecture.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "lecture.pdf", doc.Name)
	assert.Equal(t, FormatPDF, doc.Format)

	first := strings.Index(doc.Text, "Text mining finds patterns in documents.")
	second := strings.Index(doc.Text, "Generative AI writes new text.")
	require.GreaterOrEqual(t, first, 0, "page 1 missing from %q", doc.Text)
	require.Greater(t, second, first, "page 3 missing or out of order in %q", doc.Text)

	// The blank middle page adds nothing between the two.
	between := doc.Text[first+len("Text mining finds patterns in documents.") : second]
	assert.Empty(t, strings.TrimSpace(between))
	assert.Contains(t, between, "\n")
}
