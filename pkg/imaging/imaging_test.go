package imaging_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrove/stockwatch/pkg/imaging"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestProcess_JPEGWithinBounds(t *testing.T) {
	photo, err := imaging.Process(bytes.NewReader(encodeJPEG(t, 640, 480)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.MIME)

	w, h := decodeSize(t, photo.Data)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestProcess_PNGReencodedAsJPEG(t *testing.T) {
	photo, err := imaging.Process(bytes.NewReader(encodePNG(t, 100, 100)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.MIME)

	_, err = jpeg.Decode(bytes.NewReader(photo.Data))
	assert.NoError(t, err)
}

func TestProcess_DownscalesWideImage(t *testing.T) {
	photo, err := imaging.Process(bytes.NewReader(encodeJPEG(t, 2560, 1440)))
	require.NoError(t, err)

	w, h := decodeSize(t, photo.Data)
	assert.Equal(t, imaging.MaxDimension, w)
	assert.Equal(t, 720, h)
}

func TestProcess_DownscalesTallImage(t *testing.T) {
	photo, err := imaging.Process(bytes.NewReader(encodeJPEG(t, 720, 2560)))
	require.NoError(t, err)

	w, h := decodeSize(t, photo.Data)
	assert.Equal(t, imaging.MaxDimension, h)
	assert.Equal(t, 360, w)
}

func TestProcess_RejectsNonImage(t *testing.T) {
	_, err := imaging.Process(bytes.NewReader([]byte("not an image at all")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported photo format")
}

func TestProcess_RejectsGIF(t *testing.T) {
	// GIF89a header followed by junk; sniffed as image/gif and rejected
	// before decoding.
	data := append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 32)...)
	_, err := imaging.Process(bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported photo format")
}
