package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const ProductImagesBucket = "product-images"

var (
	ErrExists     = errors.New("object already exists")
	ErrInvalidKey = errors.New("invalid bucket or key")
)

// Store is write-once object storage addressed by (bucket, key).
type Store interface {
	Upload(ctx context.Context, bucket string, key string, data []byte) error
	PublicURL(bucket string, key string) string
}

// ObjectKey returns "<unix millis>_<sanitized file name>".
func ObjectKey(at time.Time, filename string) string {
	return fmt.Sprintf("%d_%s", at.UnixMilli(), sanitizeName(filename))
}

func sanitizeName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return "upload"
	}
	return name
}

// DiskStore keeps objects under root/<bucket>/<key>.
type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root string, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskStore) Upload(ctx context.Context, bucket string, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validSegment(bucket) || !validSegment(key) {
		return ErrInvalidKey
	}

	dir := filepath.Join(d.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (d *DiskStore) PublicURL(bucket string, key string) string {
	return d.baseURL + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}

// Handler serves stored objects; mount it with http.StripPrefix.
func (d *DiskStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(d.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
