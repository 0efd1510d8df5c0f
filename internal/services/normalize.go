package services

import (
	"bytes"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/inspectsync/server/internal/observability"
)

const (
	// normalizedMaxDim caps either dimension of an uploaded photo
	normalizedMaxDim = 1920
	// normalizedQuality is the JPEG re-encode quality
	normalizedQuality = 85
)

// NormalizedPhoto is the outcome of normalizing one upload
type NormalizedPhoto struct {
	Data []byte
	// Ext is the extension of the resulting bytes: ".jpg" after a
	// successful re-encode, the original extension on fallback
	Ext string
	// Fallback is true when decode or encode failed and the original
	// bytes are passed through unmodified
	Fallback bool
}

// NormalizePhoto decodes an uploaded image, corrects EXIF orientation,
// shrinks it so neither dimension exceeds 1920px, and re-encodes it as
// JPEG at quality 85. Any decode or encode failure falls back to the
// original bytes unmodified; normalization never rejects a file itself,
// the size cap downstream does.
func NormalizePhoto(data []byte, fileName string) NormalizedPhoto {
	originalExt := strings.ToLower(filepath.Ext(fileName))
	fallback := NormalizedPhoto{Data: data, Ext: originalExt, Fallback: true}

	img, err := decodePhoto(data, fileName)
	if err != nil {
		observability.Debugf("Photo decode failed for %s, keeping original bytes: %v", fileName, err)
		return fallback
	}

	img = applyOrientation(img, orientationOf(data))

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := fitWithin(width, height, normalizedMaxDim)
	if newWidth != width || newHeight != height {
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: normalizedQuality}); err != nil {
		observability.Debugf("Photo encode failed for %s, keeping original bytes: %v", fileName, err)
		return fallback
	}

	return NormalizedPhoto{Data: buf.Bytes(), Ext: ".jpg"}
}

// decodePhoto handles the standard formats plus HEIC/HEIF
func decodePhoto(data []byte, fileName string) (image.Image, error) {
	if isHEIC(fileName) {
		return goheif.Decode(bytes.NewReader(data))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Mislabelled HEIC files show up in the wild
		if heicImg, heicErr := goheif.Decode(bytes.NewReader(data)); heicErr == nil {
			return heicImg, nil
		}
		return nil, err
	}
	return img, nil
}

// orientationOf reads the EXIF orientation tag, defaulting to 1 (normal)
func orientationOf(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// fitWithin computes dimensions scaled to fit maxDim, preserving aspect ratio
func fitWithin(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}

	if width > height {
		return maxDim, height * maxDim / width
	}
	return width * maxDim / height, maxDim
}

// applyOrientation corrects image orientation based on the EXIF tag
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func isHEIC(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".heic" || ext == ".heif"
}
