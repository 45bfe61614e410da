package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"Too short", "hello", "unknown"},
		{"English", "The quick brown fox jumps over the lazy dog", "english"},
		{"Chinese", "这是一个用于测试语言检测功能的中文句子", "chinese"},
		{"Japanese", "これはにほんごのぶんしょうです。ありがとう", "japanese"},
		{"Korean", "이것은 한국어 문장입니다 감사합니다", "korean"},
		{"Cyrillic", "Это предложение написано по-русски", "cyrillic"},
		{"Arabic", "هذه جملة مكتوبة باللغة العربية", "arabic"},
		{"Digits only", "1234567890 1234567890", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestDetectLanguageTieGoesToLaterScript(t *testing.T) {
	// Five latin letters and five cyrillic letters.
	assert.Equal(t, "cyrillic", DetectLanguage("abcdeабвгд"))
}
