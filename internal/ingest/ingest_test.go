package ingest

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "tmp.png")
	f, err := os.Create(tmp)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	b, err := os.ReadFile(tmp)
	require.NoError(t, err)
	return b
}

func redTile() *image.Paletted {
	img := palette.New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetColorIndex(x, y, 8) // red
		}
	}
	return img
}

func newServer(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			_, _ = w.Write(body)
		}
	}))
}

func newServerWithETag(t *testing.T, body []byte, status int, etag string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		w.WriteHeader(status)
		if body != nil {
			_, _ = w.Write(body)
		}
	}))
}

func TestFetchTileFirstObservationIsChanged(t *testing.T) {
	body := encodePNG(t, redTile())
	srv := newServer(t, body, http.StatusOK)
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, CacheDir: t.TempDir()})
	outcome, _, err := f.FetchTile(context.Background(), geometry.Tile{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
}

func TestFetchTileCapturesETag(t *testing.T) {
	body := encodePNG(t, redTile())
	srv := newServerWithETag(t, body, http.StatusOK, `"abc123"`)
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, CacheDir: t.TempDir()})
	outcome, etag, err := f.FetchTile(context.Background(), geometry.Tile{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
	assert.Equal(t, `"abc123"`, etag)
}

func TestFetchTileSecondIdenticalFetchIsUnchanged(t *testing.T) {
	body := encodePNG(t, redTile())
	srv := newServer(t, body, http.StatusOK)
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, CacheDir: t.TempDir()})
	tile := geometry.Tile{X: 3, Y: 3}

	_, _, err := f.FetchTile(context.Background(), tile)
	require.NoError(t, err)

	outcome, _, err := f.FetchTile(context.Background(), tile)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)
}

func TestFetchTileContentChangeIsDetected(t *testing.T) {
	cacheDir := t.TempDir()
	tile := geometry.Tile{X: 0, Y: 0}

	srv1 := newServer(t, encodePNG(t, redTile()), http.StatusOK)
	f := New(Config{BaseURL: srv1.URL, CacheDir: cacheDir})
	_, _, err := f.FetchTile(context.Background(), tile)
	require.NoError(t, err)
	srv1.Close()

	blueTile := palette.New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			blueTile.SetColorIndex(x, y, 20)
		}
	}
	srv2 := newServer(t, encodePNG(t, blueTile), http.StatusOK)
	defer srv2.Close()
	f2 := New(Config{BaseURL: srv2.URL, CacheDir: cacheDir})

	outcome, _, err := f2.FetchTile(context.Background(), tile)
	require.NoError(t, err)
	assert.Equal(t, Changed, outcome)
}

func TestFetchTileNon200IsUnavailable(t *testing.T) {
	srv := newServer(t, nil, http.StatusNotFound)
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, CacheDir: t.TempDir()})
	outcome, _, err := f.FetchTile(context.Background(), geometry.Tile{X: 5, Y: 5})
	require.NoError(t, err)
	assert.Equal(t, Unavailable, outcome)
}

func TestFetchTileBadImageIsUnavailable(t *testing.T) {
	srv := newServer(t, []byte("not a png"), http.StatusOK)
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, CacheDir: t.TempDir()})
	outcome, _, err := f.FetchTile(context.Background(), geometry.Tile{X: 6, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, Unavailable, outcome)
}
