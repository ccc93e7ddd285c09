package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bierserv/api/internal/config"
)

func pngOf(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestSave_ResizesToMaxDim(t *testing.T) {
	dir := t.TempDir()
	s := NewImageStore(config.UploadConfig{Dir: dir, BaseURL: "/uploads/", ImageMaxDim: 100, ImageQuality: 80})

	url, err := s.Save(pngOf(t, 400, 200))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/"))
	require.True(t, strings.HasSuffix(url, ".jpg"))

	f, err := os.Open(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	defer f.Close()

	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestSave_KeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	s := NewImageStore(config.UploadConfig{Dir: dir, BaseURL: "/uploads"})

	url, err := s.Save(pngOf(t, 40, 30))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestSave_RejectsNonImage(t *testing.T) {
	s := NewImageStore(config.UploadConfig{Dir: t.TempDir(), BaseURL: "/uploads"})

	_, err := s.Save(strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestNewImageStore_Defaults(t *testing.T) {
	s := NewImageStore(config.UploadConfig{Dir: "x", ImageQuality: 500})
	assert.Equal(t, defaultMaxDim, s.maxDim)
	assert.Equal(t, defaultQuality, s.quality)
	assert.Equal(t, "x", s.Dir())
}
