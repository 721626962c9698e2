package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // register decoders for uploaded formats
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

const (
	// AvatarFolder gets downscaled on ingest; other folders store bytes as-is.
	AvatarFolder = "avatars"
	PostFolder   = "posts"

	avatarMaxSize = 512
	jpegQuality   = 82
)

// DiskStore stores blobs on the local filesystem under root, serving them
// from baseURL. Ids are "<folder>/<uuid>" so delete needs no index lookup.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Store(ctx context.Context, data []byte, folder string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	if folder == "" {
		folder = PostFolder
	}
	if strings.ContainsAny(folder, "/\\.") {
		return Blob{}, fmt.Errorf("invalid media folder %q", folder)
	}

	if folder == AvatarFolder {
		if scaled, ok := downscale(data, avatarMaxSize); ok {
			data = scaled
		}
	}

	id := fmt.Sprintf("%s/%s", folder, uuid.New().String())
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Blob{}, fmt.Errorf("create media folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(id)), data, 0o644); err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}

	return Blob{URL: s.baseURL + "/" + id, ID: id}, nil
}

// Delete removes the blob. Missing blobs are not an error: delete is
// idempotent so retried cascades do not fail.
func (s *DiskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid blob id %q", id)
	}
	err := os.Remove(filepath.Join(s.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// downscale re-encodes images larger than max on either axis. Non-image or
// undecodable payloads are stored untouched.
func downscale(data []byte, max int) ([]byte, bool) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	b := src.Bounds()
	if b.Dx() <= max && b.Dy() <= max {
		return nil, false
	}

	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
