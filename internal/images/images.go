package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/gembooth/internal/models"
)

var (
	// ErrEmptyInput is returned for a capture with no image bytes
	ErrEmptyInput = errors.New("empty image")
	// ErrNotImage is returned when the bytes are not a supported image
	ErrNotImage = errors.New("not a supported image")
)

// MaxSize is the largest capture accepted
const MaxSize = 10 * 1024 * 1024

// ParseDataURI decodes a base64 data URI such as the one produced by
// canvas.toDataURL("image/jpeg").
func ParseDataURI(uri string) (models.Payload, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return models.Payload{}, fmt.Errorf("%w: missing data: prefix", ErrNotImage)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return models.Payload{}, fmt.Errorf("%w: malformed data URI", ErrNotImage)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return models.Payload{}, fmt.Errorf("%w: data URI is not base64 encoded", ErrNotImage)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to decode data URI: %w", err)
	}

	return Validate(models.Payload{Data: data, MIMEType: mediaType})
}

// DataURI encodes a payload as a base64 data URI
func DataURI(p models.Payload) string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Validate checks that the payload holds a decodable image within MaxSize
// and fills in its MIME type when missing.
func Validate(p models.Payload) (models.Payload, error) {
	if len(p.Data) == 0 {
		return models.Payload{}, ErrEmptyInput
	}
	if len(p.Data) > MaxSize {
		return models.Payload{}, fmt.Errorf("image too large (max %dMB)", MaxSize/1024/1024)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(p.Data)); err != nil {
		return models.Payload{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if p.MIMEType == "" || p.MIMEType == "application/octet-stream" {
		p.MIMEType = SniffMIMEType(p.Data)
	}
	return p, nil
}

// SniffMIMEType detects the image type of data
func SniffMIMEType(data []byte) string {
	return http.DetectContentType(data)
}

// Extension returns a file extension, with dot, for an image MIME type
func Extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
