package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 200, A: 255})
		}
	}
	return img
}

func TestNormalizeToPNGKeepsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, sampleImage()))

	out, err := NormalizeToPNG(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestNormalizeToPNGConvertsJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, sampleImage(), nil))

	out, err := NormalizeToPNG(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, IsPNG(out))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestNormalizeToPNGRejectsGarbage(t *testing.T) {
	_, err := NormalizeToPNG([]byte("definitely not an image"))
	assert.Error(t, err)
}
