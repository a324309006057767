package genai

import (
	"bytes"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
)

// syntheticLongEdge is the long side of offline placeholder images.
const syntheticLongEdge = 256

// syntheticImage renders a deterministic placeholder for req: a vertical
// gradient between two colours derived from the request, crossed by a band
// whose position also depends on it.
func syntheticImage(req ImageRequest) *ImageAsset {
	width, height := aspectDimensions(req.AspectRatio)
	sum := sha256.Sum256([]byte(req.RequestID + "|" + req.Prompt + "|" + req.AspectRatio))
	top := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	bottom := color.RGBA{R: sum[3], G: sum[4], B: sum[5], A: 255}
	band := color.RGBA{R: 255 - sum[6], G: 255 - sum[7], B: 255 - sum[8], A: 255}
	bandTop := int(sum[9]) % max(1, height*3/4)
	bandHeight := max(4, height/10)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := lerp(top, bottom, y, height)
		if y >= bandTop && y < bandTop+bandHeight {
			row = band
		}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return &ImageAsset{Data: buf.Bytes(), Format: "image/png", Width: width, Height: height}
}

func lerp(a, b color.RGBA, step, steps int) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8((int(x)*(steps-step) + int(y)*step) / max(1, steps))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// aspectDimensions scales a "W:H" ratio so its long edge is
// syntheticLongEdge. Unparseable ratios are square.
func aspectDimensions(aspect string) (int, int) {
	w, h, ok := strings.Cut(strings.TrimSpace(aspect), ":")
	if !ok {
		return syntheticLongEdge, syntheticLongEdge
	}
	a, errA := strconv.Atoi(strings.TrimSpace(w))
	b, errB := strconv.Atoi(strings.TrimSpace(h))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return syntheticLongEdge, syntheticLongEdge
	}
	if a >= b {
		return syntheticLongEdge, max(1, syntheticLongEdge*b/a)
	}
	return max(1, syntheticLongEdge*a/b), syntheticLongEdge
}
