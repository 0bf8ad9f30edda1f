package slidereview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// pngEncoder is shared by every slide write. png.Encoder output depends
// only on the pixels, which keeps repeated renders byte-identical.
var pngEncoder = &png.Encoder{CompressionLevel: png.DefaultCompression}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG decodes PNG data.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}
