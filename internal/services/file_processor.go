package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"docchat_go_backend/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const csvPreviewRows = 5

type ProcessResult struct {
	Text     string
	Metadata models.FileMetadata
}

// FileProcessor turns raw upload bytes into model-ready text. It never
// touches persistence, so callers may retry it freely.
type FileProcessor struct{}

func NewFileProcessor() *FileProcessor {
	return &FileProcessor{}
}

func (p *FileProcessor) Process(ctx context.Context, raw []byte, declaredType models.FileType) (*ProcessResult, error) {
	switch declaredType {
	case models.FileTypePDF:
		return p.processPDF(ctx, raw)
	case models.FileTypeCSV:
		return p.processCSV(ctx, raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, declaredType)
	}
}

func (p *FileProcessor) processPDF(ctx context.Context, raw []byte) (result *ProcessResult, err error) {
	// The pdf reader panics on some damaged cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var content strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(text)
	}

	text := strings.TrimSpace(content.String())
	pages := totalPage
	return &ProcessResult{
		Text: text,
		Metadata: models.FileMetadata{
			Pages:    &pages,
			Language: DetectLanguage(text),
			Version:  pdfVersion(raw),
		},
	}, nil
}

var disablePDFConfigDir sync.Once

// pdfVersion reads the header version. Failures are ignored; the value is
// informational only.
func pdfVersion(raw []byte) (version string) {
	disablePDFConfigDir.Do(api.DisableConfigDir)
	defer func() {
		if recover() != nil {
			version = ""
		}
	}()

	pctx, err := api.ReadContext(bytes.NewReader(raw), nil)
	if err != nil || pctx == nil || pctx.HeaderVersion == nil {
		return ""
	}
	return pctx.HeaderVersion.String()
}

func (p *FileProcessor) processCSV(ctx context.Context, raw []byte) (*ProcessResult, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))))

	var columns []string
	var preview [][]string
	rows := 0

	header, err := reader.Read()
	switch {
	case errors.Is(err, io.EOF):
		// empty input, reported as an empty table
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	default:
		columns = header
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
			}
			if rows%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if len(preview) < csvPreviewRows {
				preview = append(preview, record)
			}
			rows++
		}
	}

	if columns == nil {
		columns = []string{}
	}
	text := csvDigest(columns, preview, rows)
	return &ProcessResult{
		Text: text,
		Metadata: models.FileMetadata{
			Rows:     &rows,
			Columns:  columns,
			Encoding: "utf-8",
			Language: DetectLanguage(text),
		},
	}, nil
}

func csvDigest(columns []string, preview [][]string, rows int) string {
	if rows == 0 {
		return "Empty CSV file"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CSV Data with %d columns and %d rows:\n\n", len(columns), rows)
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(columns, ", "))
	for i, record := range preview {
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = fmt.Sprintf("%s: %s", col, record[j])
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, strings.Join(cells, ", "))
	}
	if rows > csvPreviewRows {
		fmt.Fprintf(&b, "\n... and %d more rows", rows-csvPreviewRows)
	}
	return b.String()
}
