package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	_ "golang.org/x/image/webp"

	"asseto/internal/domain"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// Convert returns the artifact encoded as format. When the artifact already
// is in that format its bytes are returned unmodified.
func Convert(artifact *domain.Artifact, format domain.ExportFormat, jpegQuality int) ([]byte, error) {
	if artifact.Empty() {
		return nil, domain.ErrNoArtifact
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	if native, ok := domain.FormatForMIME(artifact.MIMEType); ok && native == format {
		return artifact.Data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(artifact.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", artifact.MIMEType, err)
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatPNG:
		err = png.Encode(&buf, src)
	case domain.FormatJPEG:
		if jpegQuality < 1 || jpegQuality > 100 {
			jpegQuality = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, flatten(src), &jpeg.Options{Quality: jpegQuality})
	case domain.FormatWEBP:
		err = nativewebp.Encode(&buf, src, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// flatten composites img onto white, since JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}
