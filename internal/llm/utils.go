package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipts-intake/constants"
)

// ErrTooLarge is returned by ReadAsDataURL for files above MaxUploadMB.
var ErrTooLarge = fmt.Errorf("file exceeds %d MB upload limit", constants.MaxUploadMB)

// ReadAsDataURL returns the file as a base64 data URL and its MIME type.
func ReadAsDataURL(path string) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > int64(constants.MaxUploadMB)*1024*1024 {
		return "", "", ErrTooLarge
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return "data:" + MimeType(path) + ";base64," + base64.StdEncoding.EncodeToString(b), MimeType(path), nil
}

// MimeType guesses a MIME type from the file extension.
func MimeType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	// fallbacks
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
