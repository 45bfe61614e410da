package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10 MB"},
		{1234567, "1.18 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.bytes))
		})
	}
}

func TestFileStatusTerminal(t *testing.T) {
	assert.False(t, FileStatusUploaded.Terminal())
	assert.False(t, FileStatusProcessing.Terminal())
	assert.True(t, FileStatusProcessed.Terminal())
	assert.True(t, FileStatusError.Terminal())
}

func TestUploadedFileHidesStoragePath(t *testing.T) {
	f := UploadedFile{StoredName: "abc.pdf", StoragePath: "/secret/abc.pdf"}
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "/secret/abc.pdf")
	assert.Contains(t, string(raw), `"filename":"abc.pdf"`)
}
