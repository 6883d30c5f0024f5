package ioutils

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// Cover art processing constants. Covers larger than the maximum are
// scaled down before embedding; anything smaller is kept as-is but
// re-encoded for consistent format.
const (
	MaxCoverWidth  = 500
	MaxCoverHeight = 500
	coverQuality   = 85
)

// ProcessCover normalizes downloaded cover art for ID3 embedding.
//
// The image is decoded (JPEG or PNG), scaled down to fit within
// MaxCoverWidth x MaxCoverHeight while preserving aspect ratio, and
// re-encoded as JPEG. Images already within bounds keep their
// dimensions.
//
// The Catmull-Rom algorithm is used for high-quality downscaling.
//
// Example:
//
//	data, _ := client.FetchBytes(ctx, book.ThumbnailURL)
//	cover, err := ioutils.ProcessCover(data)
//	// A 1200x800 image becomes 500x333
//	// A 300x300 image stays 300x300 (re-encoded as JPEG)
func ProcessCover(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > MaxCoverWidth || height > MaxCoverHeight {
		ratio := float64(width) / float64(height)
		if float64(MaxCoverWidth)/float64(MaxCoverHeight) > ratio {
			// Height is the limiting factor
			width = int(float64(MaxCoverHeight) * ratio)
			height = MaxCoverHeight
		} else {
			// Width is the limiting factor
			height = int(float64(MaxCoverWidth) / ratio)
			width = MaxCoverWidth
		}

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
