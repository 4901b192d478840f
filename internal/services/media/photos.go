package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

const (
	MaxPhotoBytes = 2 * 1024 * 1024
	PhotoSize     = 400

	photosSubdir = "profile_photos"
	publicPrefix = "/uploads/"
)

var (
	ErrPhotoTooLarge   = errors.New("photo max size is 2MB")
	ErrPhotoFormat     = errors.New("photo must be jpg/jpeg/png/webp")
	ErrPhotoUnreadable = errors.New("photo could not be decoded")
)

// PhotoStore keeps processed profile photos below Dir. Stored photos are
// referenced by their public path ("/uploads/profile_photos/<user>/<file>.jpg"),
// which the HTTP server maps back onto Dir.
type PhotoStore struct {
	Dir     string
	BaseURL string
}

func NewPhotoStore(dir, baseURL string) *PhotoStore {
	return &PhotoStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

// ValidateUpload checks the declared name and size before any decoding happens.
func ValidateUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return ErrPhotoFormat
	}
	if size > MaxPhotoBytes {
		return ErrPhotoTooLarge
	}
	return nil
}

// Save decodes r, crops it to a centered square, applies t and writes a JPEG.
// It returns the public path of the new photo.
func (s *PhotoStore) Save(userID uuid.UUID, r io.Reader, t models.PhotoTransform) (string, error) {
	img, err := imaging.Decode(io.LimitReader(r, MaxPhotoBytes+1), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPhotoUnreadable, err)
	}

	img = process(img, t)

	dir := filepath.Join(s.Dir, photosSubdir, userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	filename := uuid.New().String() + ".jpg"
	if err := imaging.Save(img, filepath.Join(dir, filename), imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save photo: %w", err)
	}

	return publicPrefix + photosSubdir + "/" + userID.String() + "/" + filename, nil
}

func process(img image.Image, t models.PhotoTransform) image.Image {
	out := imaging.Fill(img, PhotoSize, PhotoSize, imaging.Center, imaging.Lanczos)
	if t.FlipH {
		out = imaging.FlipH(out)
	}
	if t.FlipV {
		out = imaging.FlipV(out)
	}
	return out
}

// Remove deletes a photo previously returned by Save. Unknown paths are ignored.
func (s *PhotoStore) Remove(publicPath string) {
	local, ok := s.localPath(publicPath)
	if !ok {
		return
	}
	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove old photo", "path", local, "error", err)
	}
}

// URL turns a stored public path into an absolute URL when a base URL is set.
func (s *PhotoStore) URL(publicPath string) string {
	if publicPath == "" || s.BaseURL == "" || !strings.HasPrefix(publicPath, "/") {
		return publicPath
	}
	return s.BaseURL + publicPath
}

func (s *PhotoStore) localPath(publicPath string) (string, bool) {
	rel, ok := strings.CutPrefix(publicPath, publicPrefix+photosSubdir+"/")
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	return filepath.Join(s.Dir, photosSubdir, filepath.FromSlash(rel)), true
}
