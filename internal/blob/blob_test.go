package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestObjectKeySanitizesAndPrefixesMillis(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := ObjectKey(at, "../My Ring (1).png"); got != "1700000000123_My_Ring__1_.png" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey(at, ""); got != "1700000000123_upload" {
		t.Fatalf("unexpected key for empty name %q", got)
	}
}

func TestDiskStoreUploadDoesNotOverwrite(t *testing.T) {
	d, err := NewDiskStore(t.TempDir(), "http://localhost:8080/blobs/")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	ctx := context.Background()

	if err := d.Upload(ctx, ProductImagesBucket, "1_ring.png", []byte("first")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := d.Upload(ctx, ProductImagesBucket, "1_ring.png", []byte("second")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := d.Upload(ctx, ProductImagesBucket, "../escape.png", []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	if got := d.PublicURL(ProductImagesBucket, "1_ring.png"); got != "http://localhost:8080/blobs/product-images/1_ring.png" {
		t.Fatalf("unexpected public url %q", got)
	}

	srv := httptest.NewServer(http.StripPrefix("/blobs", d.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/blobs/product-images/1_ring.png")
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "first" {
		t.Fatalf("expected original content, got %d %q", resp.StatusCode, body)
	}
}
