package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 最小的 PNG 文件头
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestValidateMimeTypeBySignature(t *testing.T) {
	detected, err := ValidateMimeType(bytes.NewReader(pngHeader), []string{"image/png"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", detected.MimeType)
	assert.Equal(t, ".png", detected.Extension)
}

func TestValidateMimeTypePrefix(t *testing.T) {
	_, err := ValidateMimeType(bytes.NewReader(pngHeader), []string{"image/"})
	assert.NoError(t, err)
}

func TestValidateMimeTypeRejectsDisguisedText(t *testing.T) {
	// 文本内容冒充图片，只看内容不看扩展名
	detected, err := ValidateMimeType(strings.NewReader("definitely not a jpeg"), []string{"image/jpeg", "image/png"})
	assert.ErrorIs(t, err, ErrInvalidFileType)
	assert.Equal(t, "text/plain", detected.MimeType)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []uint{3, 2, 5}, UniqueIDs([]uint{3, 0, 2, 3, 1, 5, 2}, 1))
	assert.Empty(t, UniqueIDs(nil))
}

func TestMustParseUint(t *testing.T) {
	assert.Equal(t, uint(42), MustParseUint(" 42 "))
	assert.Equal(t, uint(0), MustParseUint("abc"))
	assert.Equal(t, uint(0), MustParseUint("-1"))
}
