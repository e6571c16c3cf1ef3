package imageproc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/BgRemover/internal/model"
)

const (
	dataPrefix   = "data:"
	base64Marker = ";base64,"
)

var ErrBadDataURL = errors.New("malformed data url")

// MimeFromPath - PNG sources stay PNG, anything else is shipped as JPEG
func MimeFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return model.PNG
	}
	return model.JPEG
}

// EncodeDataURL builds data:<mime>;base64,<payload>
func EncodeDataURL(mime string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(dataPrefix) + len(mime) + len(base64Marker) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString(dataPrefix)
	sb.WriteString(mime)
	sb.WriteString(base64Marker)
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}

// DecodeDataURL splits a data url into its mime type and raw bytes
func DecodeDataURL(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, dataPrefix) {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrBadDataURL, dataPrefix)
	}
	mime, payload, ok := strings.Cut(s[len(dataPrefix):], base64Marker)
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrBadDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrBadDataURL)
	}
	return mime, data, nil
}
