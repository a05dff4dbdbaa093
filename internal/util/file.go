package util

import (
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrInvalidFileType = errors.New("invalid file type")

// DetectedFile 内容签名识别结果
type DetectedFile struct {
	MimeType  string
	Extension string
}

// ValidateMimeType 按文件内容签名校验类型，文件名与客户端声明的类型一律不参与判断
// allowedTypes: 完整类型如 "image/png"，或以 "/" 结尾的前缀如 "image/"
func ValidateMimeType(reader io.Reader, allowedTypes []string) (DetectedFile, error) {
	m, err := mimetype.DetectReader(reader)
	if err != nil {
		return DetectedFile{}, err
	}

	base, _, err := mime.ParseMediaType(m.String())
	if err != nil {
		base = m.String()
	}
	detected := DetectedFile{MimeType: base, Extension: m.Extension()}

	for _, allowed := range allowedTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if strings.HasSuffix(allowed, "/") && strings.HasPrefix(base, allowed) {
			return detected, nil
		}
		if base == allowed || m.Is(allowed) {
			return detected, nil
		}
	}

	return detected, ErrInvalidFileType
}

// IsImage 检测是否为图片
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
