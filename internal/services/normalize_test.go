package services

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy()
}

func TestNormalizePhoto(t *testing.T) {
	t.Run("oversized landscape image is shrunk to the cap", func(t *testing.T) {
		original := encodeJPEG(t, 4000, 2000)

		result := NormalizePhoto(original, "site.jpg")
		require.False(t, result.Fallback)
		assert.Equal(t, ".jpg", result.Ext)

		width, height := decodeDims(t, result.Data)
		assert.Equal(t, 1920, width)
		assert.Equal(t, 960, height)
	})

	t.Run("oversized portrait image is capped on its long edge", func(t *testing.T) {
		original := encodeJPEG(t, 1000, 3840)

		result := NormalizePhoto(original, "site.jpg")
		require.False(t, result.Fallback)

		width, height := decodeDims(t, result.Data)
		assert.Equal(t, 1920, height)
		assert.Equal(t, 500, width)
	})

	t.Run("small image keeps its dimensions", func(t *testing.T) {
		original := encodeJPEG(t, 800, 600)

		result := NormalizePhoto(original, "closeup.jpg")
		require.False(t, result.Fallback)

		width, height := decodeDims(t, result.Data)
		assert.Equal(t, 800, width)
		assert.Equal(t, 600, height)
	})

	t.Run("png input is re-encoded as jpeg", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))

		result := NormalizePhoto(buf.Bytes(), "diagram.png")
		require.False(t, result.Fallback)
		assert.Equal(t, ".jpg", result.Ext)

		_, format, err := image.Decode(bytes.NewReader(result.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("undecodable bytes fall back to the original", func(t *testing.T) {
		original := []byte("definitely not an image")

		result := NormalizePhoto(original, "broken.jpg")
		assert.True(t, result.Fallback)
		assert.Equal(t, original, result.Data)
		assert.Equal(t, ".jpg", result.Ext)
	})

	t.Run("fallback keeps the original extension", func(t *testing.T) {
		result := NormalizePhoto([]byte("opaque"), "scan.TIFF")
		assert.True(t, result.Fallback)
		assert.Equal(t, ".tiff", result.Ext)
	})
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name                  string
		width, height         int
		wantWidth, wantHeight int
	}{
		{"already within", 1920, 1080, 1920, 1080},
		{"landscape over", 3840, 2160, 1920, 1080},
		{"portrait over", 2160, 3840, 1080, 1920},
		{"square over", 4000, 4000, 1920, 1920},
		{"tiny", 100, 50, 100, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := fitWithin(tc.width, tc.height, normalizedMaxDim)
			assert.Equal(t, tc.wantWidth, w)
			assert.Equal(t, tc.wantHeight, h)
		})
	}
}
