// Package storage keeps uploaded images on local disk under a public root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// ErrInvalidImage wraps every rejection of the uploaded file itself.
var ErrInvalidImage = errors.New("invalid image")

// Local writes files to Root/<dir>/<uuid><ext> and hands back the
// slash separated path relative to Root's parent, e.g. "uploads/products/x.png".
type Local struct {
	Root string
}

func NewLocal(root string) *Local {
	return &Local{Root: filepath.Clean(root)}
}

// SaveImage stores an uploaded image under dir.
func (l *Local) SaveImage(dir string, file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("%w: image file extension is required", ErrInvalidImage)
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return "", fmt.Errorf("%w: unsupported image type: %s", ErrInvalidImage, extension)
	}
	if file.Size > MaxImageSize {
		return "", fmt.Errorf("%w: image file too large (max 5MB)", ErrInvalidImage)
	}

	dir = path.Clean("/" + dir)[1:]
	filename := uuid.NewString() + extension
	target := filepath.Join(l.Root, filepath.FromSlash(dir))
	if err := os.MkdirAll(target, 0o755); err != nil {
		log.Printf("[UPLOAD] [ERROR] failed to create directory %s: %v", target, err)
		return "", err
	}

	fullPath := filepath.Join(target, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		log.Printf("[UPLOAD] [ERROR] failed to create file %s: %v", fullPath, err)
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		log.Printf("[UPLOAD] [ERROR] failed to open upload %s: %v", file.Filename, err)
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, io.LimitReader(in, MaxImageSize+1)); err != nil {
		log.Printf("[UPLOAD] [ERROR] failed to save file %s: %v", fullPath, err)
		_ = os.Remove(fullPath)
		return "", err
	}

	log.Printf("[UPLOAD] [INFO] saved %s", fullPath)
	return path.Join(filepath.Base(l.Root), dir, filename), nil
}

// Delete removes a file previously returned by SaveImage. Paths that escape
// Root are refused; missing files are not an error.
func (l *Local) Delete(relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")
	prefix := filepath.Base(l.Root) + "/"
	if !strings.HasPrefix(cleanRel, prefix) {
		return fmt.Errorf("refusing to delete non-upload path: %s", relPath)
	}

	target := filepath.Clean(filepath.Join(l.Root, filepath.FromSlash(strings.TrimPrefix(cleanRel, prefix))))
	if target == l.Root || !strings.HasPrefix(target, l.Root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload root: %s", relPath)
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
