package models

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeCSV   FileType = "csv"
	FileTypeOther FileType = "other"
)

type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusProcessing FileStatus = "processing"
	FileStatusProcessed  FileStatus = "processed"
	FileStatusError      FileStatus = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s FileStatus) Terminal() bool {
	return s == FileStatusProcessed || s == FileStatusError
}

type ProcessingResult struct {
	ExtractedText *string    `gorm:"type:text" json:"extractedText,omitempty"`
	Error         *string    `json:"error,omitempty"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

// FileMetadata is populated only when processing succeeds.
type FileMetadata struct {
	Pages    *int                        `json:"pages,omitempty"`
	Rows     *int                        `json:"rows,omitempty"`
	Columns  datatypes.JSONSlice[string] `json:"columns,omitempty"`
	Encoding string                      `json:"encoding,omitempty"`
	Language string                      `json:"language,omitempty"`
	Version  string                      `json:"version,omitempty"`
}

type UploadedFile struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;index;not null" json:"userId"`
	ChatID           uuid.UUID        `gorm:"type:uuid;index;not null" json:"chatId"`
	StoredName       string           `gorm:"not null" json:"filename"`
	OriginalName     string           `gorm:"not null" json:"originalName"`
	MimeType         string           `json:"mimetype"`
	Size             int64            `gorm:"not null" json:"size"`
	StoragePath      string           `gorm:"not null" json:"-"`
	FileType         FileType         `gorm:"size:8;index;not null" json:"fileType"`
	Status           FileStatus       `gorm:"size:16;index;not null" json:"status"`
	ProcessingResult ProcessingResult `gorm:"embedded;embeddedPrefix:result_" json:"processingResult"`
	Metadata         FileMetadata     `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	IsActive         bool             `gorm:"index;not null" json:"isActive"`
	CreatedAt        time.Time        `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (f *UploadedFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// SizeFormatted renders Size with binary units, e.g. "1.5 KB".
func (f *UploadedFile) SizeFormatted() string {
	return FormatSize(f.Size)
}

func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + sizes[i]
}
