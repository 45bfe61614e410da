package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"docchat_go_backend/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Arial", "", 12)
	for _, content := range pages {
		pdf.AddPage()
		pdf.Cell(40, 10, content)
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func csvWithRows(n int) []byte {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i*10)
	}
	return []byte(b.String())
}

func TestFileProcessor_CSV(t *testing.T) {
	p := NewFileProcessor()
	ctx := context.Background()

	t.Run("Three rows are all previewed", func(t *testing.T) {
		result, err := p.Process(ctx, csvWithRows(3), models.FileTypeCSV)
		require.NoError(t, err)

		require.NotNil(t, result.Metadata.Rows)
		assert.Equal(t, 3, *result.Metadata.Rows)
		assert.Equal(t, []string{"a", "b"}, []string(result.Metadata.Columns))
		assert.Equal(t, "utf-8", result.Metadata.Encoding)
		assert.Equal(t, "CSV Data with 2 columns and 3 rows:\n\n"+
			"Columns: a, b\n\n"+
			"Row 1: a: 1, b: 10\n"+
			"Row 2: a: 2, b: 20\n"+
			"Row 3: a: 3, b: 30\n", result.Text)
		assert.NotContains(t, result.Text, "more rows")
	})

	t.Run("Ten rows preview five", func(t *testing.T) {
		result, err := p.Process(ctx, csvWithRows(10), models.FileTypeCSV)
		require.NoError(t, err)

		assert.Equal(t, 10, *result.Metadata.Rows)
		assert.Equal(t, 5, strings.Count(result.Text, "Row "))
		assert.Contains(t, result.Text, "Row 5: a: 5, b: 50")
		assert.NotContains(t, result.Text, "Row 6:")
		assert.True(t, strings.HasSuffix(result.Text, "\n... and 5 more rows"))
	})

	t.Run("Header only", func(t *testing.T) {
		result, err := p.Process(ctx, []byte("a,b\n"), models.FileTypeCSV)
		require.NoError(t, err)
		assert.Equal(t, "Empty CSV file", result.Text)
		assert.Equal(t, 0, *result.Metadata.Rows)
		assert.Equal(t, []string{"a", "b"}, []string(result.Metadata.Columns))
	})

	t.Run("Empty input", func(t *testing.T) {
		result, err := p.Process(ctx, []byte{}, models.FileTypeCSV)
		require.NoError(t, err)
		assert.Equal(t, "Empty CSV file", result.Text)
		assert.Equal(t, 0, *result.Metadata.Rows)
		assert.Empty(t, result.Metadata.Columns)
	})

	t.Run("Byte order mark is stripped", func(t *testing.T) {
		result, err := p.Process(ctx, append([]byte("\xef\xbb\xbf"), csvWithRows(1)...), models.FileTypeCSV)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, []string(result.Metadata.Columns))
	})

	t.Run("Ragged row", func(t *testing.T) {
		_, err := p.Process(ctx, []byte("a,b\n1,2\n3\n"), models.FileTypeCSV)
		assert.ErrorIs(t, err, ErrMalformedTable)
	})

	t.Run("Bare quote", func(t *testing.T) {
		_, err := p.Process(ctx, []byte("a,b\n1,x\"y\n"), models.FileTypeCSV)
		assert.ErrorIs(t, err, ErrMalformedTable)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Process(cancelled, csvWithRows(3), models.FileTypeCSV)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileProcessor_PDF(t *testing.T) {
	p := NewFileProcessor()
	ctx := context.Background()

	t.Run("Extracts text per page", func(t *testing.T) {
		raw := createTestPDF(t, "First page content", "Second page content")

		result, err := p.Process(ctx, raw, models.FileTypePDF)
		require.NoError(t, err)

		require.NotNil(t, result.Metadata.Pages)
		assert.Equal(t, 2, *result.Metadata.Pages)
		assert.Contains(t, result.Text, "First page content")
		assert.Contains(t, result.Text, "Second page content")
		assert.Less(t, strings.Index(result.Text, "First"), strings.Index(result.Text, "Second"))
		assert.Equal(t, "english", result.Metadata.Language)
	})

	t.Run("Not a PDF", func(t *testing.T) {
		_, err := p.Process(ctx, []byte("definitely not a pdf"), models.FileTypePDF)
		assert.ErrorIs(t, err, ErrUnreadableDocument)
	})

	t.Run("Truncated PDF", func(t *testing.T) {
		raw := createTestPDF(t, "Some content")
		_, err := p.Process(ctx, raw[:len(raw)/3], models.FileTypePDF)
		assert.ErrorIs(t, err, ErrUnreadableDocument)
	})
}

func TestFileProcessor_Unsupported(t *testing.T) {
	_, err := NewFileProcessor().Process(context.Background(), []byte("x"), models.FileTypeOther)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}
