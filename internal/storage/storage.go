package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file exceeds the upload limit")
	ErrUnsupportedType = errors.New("only JPEG, PNG and WebP images are accepted")
	ErrInvalidKey      = errors.New("invalid object key")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store is the object storage used for avatars and report evidence.
type Store interface {
	PutImage(ctx context.Context, prefix string, r io.Reader) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// FileStore keeps objects on the local filesystem and serves them under PublicURL.
type FileStore struct {
	dir       string
	publicURL string
	maxBytes  int64
}

func NewFileStore(dir, publicURL string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FileStore{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
	}, nil
}

// PutImage sniffs the content type, rejects non-images and writes the file
// under prefix/<uuid><ext>.
func (s *FileStore) PutImage(ctx context.Context, prefix string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if prefix == "" || strings.Contains(prefix, "..") || strings.ContainsAny(prefix, `/\`) {
		return Object{}, ErrInvalidKey
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return Object{}, fmt.Errorf("reading upload: %w", err)
	}
	contentType := http.DetectContentType(head)
	ext, ok := imageExt[contentType]
	if !ok {
		return Object{}, ErrUnsupportedType
	}

	key := path.Join(prefix, uuid.NewString()+ext)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("creating object dir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return Object{}, fmt.Errorf("creating object: %w", err)
	}

	// Read one byte past the limit so oversize uploads are detected.
	n, err := io.Copy(f, io.LimitReader(br, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, ErrTooLarge) {
			return Object{}, err
		}
		return Object{}, fmt.Errorf("writing object: %w", err)
	}

	return Object{
		Key:         key,
		URL:         s.publicURL + "/" + key,
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// KeyFromURL recovers the object key from a URL produced by this store.
func (s *FileStore) KeyFromURL(url string) (string, bool) {
	prefix := s.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Handler serves stored objects read-only. Directories answer 404 so their
// contents are never listed.
func (s *FileStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.StripPrefix(s.publicURL, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		info, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(clean)))
		if err != nil || info.IsDir() || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))
}
