package archive

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// iconSize is the normalized square dimension every extracted icon is
// resized to.
const iconSize = 64

// normalizeIcon decodes an image and re-encodes it as a 64x64 PNG, resizing
// with a high-quality interpolator when shrinking and nearest-neighbor when
// upscaling (so small pixel-art icons aren't blurred). Grounded in shape on
// golang.org/x/image/draw's scaler interfaces; no example repo in the
// corpus performs image resampling, so this is an out-of-pack dependency
// rather than a grounded one.
func normalizeIcon(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() == iconSize && bounds.Dy() == iconSize {
		var out bytes.Buffer
		if err := png.Encode(&out, src); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	scaler := draw.CatmullRom
	if bounds.Dx() < iconSize || bounds.Dy() < iconSize {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
