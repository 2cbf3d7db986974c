package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"spellingbee/internal/domain"
)

var _ Transfer = (*FSStore)(nil)

// FSStore keeps objects under a root directory; the HTTP server exposes
// root/recordings so returned URIs resolve.
type FSStore struct {
	root    string
	baseURL string
}

func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory objects are written to.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob: key %q escapes root: %w", key, domain.ErrInvalidArgument)
	}
	return p, nil
}

// Upload writes to a temp file and renames it into place so readers never
// see a partial object.
func (s *FSStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w: %w", domain.ErrTransferFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: temp file: %w: %w", domain.ErrTransferFailure, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blob: write %s: %w: %w", key, domain.ErrTransferFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w: %w", key, domain.ErrTransferFailure, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("blob: rename %s: %w: %w", key, domain.ErrTransferFailure, err)
	}

	return s.uri(key), nil
}

// uri escapes each key segment again: keys already carry escaped words as
// literal file names, and the file server decodes the path once.
func (s *FSStore) uri(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segs, "/")
}

func (s *FSStore) Download(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("blob: %s: %w", key, domain.ErrNotFound)
		}
		return "", fmt.Errorf("blob: stat %s: %w: %w", key, domain.ErrTransferFailure, err)
	}
	return p, nil
}

// ctxReader stops a copy once the upload's context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
