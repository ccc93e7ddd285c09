// Package storage keeps uploaded images on local disk.
package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/bierserv/api/internal/config"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

const (
	defaultMaxDim  = 1200
	defaultQuality = 85
)

// ImageStore resizes uploads into JPEGs under dir and serves them below baseURL.
type ImageStore struct {
	dir     string
	baseURL string
	maxDim  int
	quality int
}

func NewImageStore(cfg config.UploadConfig) *ImageStore {
	s := &ImageStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		maxDim:  cfg.ImageMaxDim,
		quality: cfg.ImageQuality,
	}
	if s.maxDim <= 0 {
		s.maxDim = defaultMaxDim
	}
	if s.quality <= 0 || s.quality > 100 {
		s.quality = defaultQuality
	}
	return s
}

// Dir is where files are written, for the static file server.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save decodes r, shrinks it to fit maxDim and writes a JPEG. It returns the
// public URL of the stored file.
func (s *ImageStore) Save(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := img.Bounds()
	if b.Dx() > s.maxDim || b.Dy() > s.maxDim {
		img = imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ".jpg"
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return s.baseURL + "/" + name, nil
}
