// Package storage keeps recipe images on local disk and serves them under a
// public URL prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// URLPrefix is the route the image directory is mounted on.
const URLPrefix = "/recipe-images"

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type Store interface {
	Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error)
	Remove(ctx context.Context, urls []string) error
}

// Disk stores objects as files named by uuid under Dir.
type Disk struct {
	Dir     string
	BaseURL string
	MaxSize int64
	log     *zap.Logger
}

func NewDisk(dir, baseURL string, maxSize int64, log *zap.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxSize: maxSize, log: log}, nil
}

// Upload validates type and size and returns the public URL of the stored file.
func (d *Disk) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	typeExt, typeOK := allowedTypes[strings.ToLower(contentType)]
	switch {
	case typeOK:
		ext = typeExt
	case allowedExt[ext]:
		if ext == ".jpeg" {
			ext = ".jpg"
		}
	default:
		return "", apperr.Validation("Only JPEG, PNG and WebP images are allowed")
	}
	if size > d.MaxSize {
		return "", apperr.Validation("Image is larger than %d MB", d.MaxSize/(1024*1024))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(d.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	// Read one byte past the limit so a lying size header is caught.
	n, err := io.Copy(f, io.LimitReader(r, d.MaxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > d.MaxSize {
		err = apperr.Validation("Image is larger than %d MB", d.MaxSize/(1024*1024))
	}
	if err != nil {
		os.Remove(path)
		if _, ok := apperr.As(err); ok {
			return "", err
		}
		return "", fmt.Errorf("write image file: %w", err)
	}
	return d.BaseURL + URLPrefix + "/" + name, nil
}

// Remove deletes the files behind urls. URLs that do not point into this
// store are ignored, as are files that are already gone.
func (d *Disk) Remove(ctx context.Context, urls []string) error {
	var errs []error
	for _, u := range urls {
		name, ok := d.objectName(u)
		if !ok {
			continue
		}
		if err := os.Remove(filepath.Join(d.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		d.log.Warn("remove images", zap.Errors("errors", errs))
	}
	return errors.Join(errs...)
}

func (d *Disk) objectName(url string) (string, bool) {
	prefix := d.BaseURL + URLPrefix + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", false
	}
	return name, true
}
