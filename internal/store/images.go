package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// UploadURLPrefix is where the HTTP layer serves the upload directory.
const UploadURLPrefix = "/uploads/"

// DiskImages stores uploaded pictures as flat files named
// <unix millis>-<random>.<ext>. Files are only ever created, never rewritten.
type DiskImages struct {
	Dir      string
	MaxWidth uint
}

// NewDiskImages makes sure dir exists. MkdirAll is a no-op for an existing
// directory, so concurrent starts cannot race on it.
func NewDiskImages(dir string, maxWidth uint) (*DiskImages, error) {
	if dir == "" {
		return nil, errors.New("upload directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskImages{Dir: dir, MaxWidth: maxWidth}, nil
}

func (d *DiskImages) SaveImage(ctx context.Context, data []byte, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}

	ext := imageExt(originalName, data)
	data = d.shrink(data)

	for attempt := 0; attempt < 3; attempt++ {
		name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), randomSuffix(), ext)
		f, err := os.OpenFile(filepath.Join(d.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write image file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write image file: %w", err)
		}
		return UploadURLPrefix + name, nil
	}
	return "", errors.New("could not allocate a unique image name")
}

// RemoveImage deletes a file previously returned by SaveImage. Removing a
// file that is already gone is not an error.
func (d *DiskImages) RemoveImage(_ context.Context, publicPath string) error {
	name := strings.TrimPrefix(publicPath, UploadURLPrefix)
	if name == publicPath || name == "" || name != path.Base(name) || name == ".." {
		return fmt.Errorf("not an upload path: %q", publicPath)
	}
	err := os.Remove(filepath.Join(d.Dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// imageExt keeps the client's extension when it looks sane and otherwise
// falls back to the sniffed content type.
func imageExt(originalName string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 1 && len(ext) <= 8 && isAlnum(ext[1:]) {
		return ext
	}
	return mimetype.Detect(data).Extension()
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// shrink downsizes JPEG and PNG images wider than MaxWidth, preserving the
// aspect ratio and the format. Anything it cannot decode is kept as is.
func (d *DiskImages) shrink(data []byte) []byte {
	if d.MaxWidth == 0 {
		return data
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= int(d.MaxWidth) || (format != "jpeg" && format != "png") {
		return data
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	resized := resize.Resize(d.MaxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		slog.Warn("Failed to re-encode resized image, keeping original", "error", err)
		return data
	}
	return buf.Bytes()
}
