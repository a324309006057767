package domain

import (
	"fmt"
	"strings"
)

// ExportFormat is the closed set of encodings an export can produce.
type ExportFormat string

const (
	FormatPNG  ExportFormat = "png"
	FormatJPEG ExportFormat = "jpeg"
	FormatWEBP ExportFormat = "webp"
)

// ParseExportFormat accepts a format token or MIME type. Empty input means PNG.
func ParseExportFormat(raw string) (ExportFormat, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "image/")
	v = strings.TrimPrefix(v, ".")
	switch v {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// FormatForMIME maps a MIME type onto a format. ok is false for unknown types.
func FormatForMIME(mime string) (ExportFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return FormatPNG, true
	case "image/jpeg", "image/jpg":
		return FormatJPEG, true
	case "image/webp":
		return FormatWEBP, true
	default:
		return "", false
	}
}

// Valid reports whether f is one of the supported formats.
func (f ExportFormat) Valid() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatWEBP:
		return true
	default:
		return false
	}
}

// Extension returns the file extension without the leading dot.
func (f ExportFormat) Extension() string {
	return string(f)
}

// MIMEType returns the canonical MIME type.
func (f ExportFormat) MIMEType() string {
	return "image/" + string(f)
}
