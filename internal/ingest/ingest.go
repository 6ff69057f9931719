// Package ingest fetches a single tile from the canvas server, canonicalizes
// it to the shared palette, and updates the on-disk tile cache (§4.4 of the
// spec). It follows the bounded-timeout HTTP client pattern of the teacher's
// internal/datasource package, generalized from Overpass QL queries to plain
// tile downloads.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
	"github.com/wplace-monitor/wplace-monitor/internal/palette"
)

// DefaultFetchTimeout bounds an individual tile fetch when Config.HTTPClient
// is left unset (§5: "an in-flight Ingest must support timeout-based
// cancellation").
const DefaultFetchTimeout = 30 * time.Second

// Outcome describes what happened to a tile during a fetch attempt.
type Outcome int

const (
	// Unchanged means the tile was fetched and its content matches the cache.
	Unchanged Outcome = iota
	// Changed means the tile was fetched and differs from the cache (or the
	// cache did not yet exist); the cache has been updated.
	Changed
	// Unavailable means the tile could not be fetched or decoded; the cache
	// is left untouched.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Config configures a Fetcher.
type Config struct {
	// BaseURL is the canvas server root, e.g. "https://backend.wplace.live".
	BaseURL string
	// CacheDir holds one PNG per tile, named "tile-{x}_{y}.png".
	CacheDir string
	// HTTPClient performs the request; if nil, a client with
	// DefaultFetchTimeout is constructed.
	HTTPClient *http.Client
	// Logger receives per-fetch debug/info events; defaults to slog.Default().
	Logger *slog.Logger
}

// Fetcher downloads and caches individual tiles.
type Fetcher struct {
	cfg Config
}

// New constructs a Fetcher, filling in defaults for unset fields.
func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{cfg: cfg}
}

func (f *Fetcher) url(t geometry.Tile) string {
	return fmt.Sprintf("%s/files/s0/tiles/%d/%d.png", f.cfg.BaseURL, t.X, t.Y)
}

func (f *Fetcher) cachePath(t geometry.Tile) string {
	return filepath.Join(f.cfg.CacheDir, fmt.Sprintf("tile-%s.png", t.String()))
}

// FetchTile downloads tile t, canonicalizes it to the shared palette, and
// compares it against the cached copy. It returns Changed and rewrites the
// cache file only when the canonicalized bytes differ (§4.4). The returned
// string is the response's ETag header, captured per §3 so the Store can
// record it on the tile row even though it isn't yet re-sent on a later
// conditional GET.
func (f *Fetcher) FetchTile(ctx context.Context, t geometry.Tile) (Outcome, string, error) {
	log := f.cfg.Logger.With("tile", t.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(t), nil)
	if err != nil {
		return Unavailable, "", fmt.Errorf("ingest: build request: %w", err)
	}

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		log.Debug("fetch failed", "err", err)
		return Unavailable, "", nil
	}
	defer resp.Body.Close()

	etag := resp.Header.Get("ETag")

	if resp.StatusCode != http.StatusOK {
		log.Debug("unexpected status", "status", resp.StatusCode)
		return Unavailable, "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Debug("read body failed", "err", err)
		return Unavailable, "", nil
	}

	img, _, err := image.Decode(newByteReader(body))
	if err != nil {
		log.Debug("decode failed", "err", err)
		return Unavailable, "", nil
	}

	canonical, err := palette.Ensure(img)
	var notInPalette *palette.ColorNotInPalette
	if err != nil && !errors.As(err, &notInPalette) {
		return Unavailable, "", fmt.Errorf("ingest: canonicalize tile %s: %w", t, err)
	}
	if notInPalette != nil {
		log.Warn("tile contains colors outside the shared palette", "unknown_colors", len(notInPalette.Colors))
	}

	cachePath := f.cachePath(t)
	if cached, err := palette.OpenFile(cachePath); err == nil {
		if palette.Equal(cached, canonical) {
			log.Info("no change detected")
			return Unchanged, etag, nil
		}
	} else if !os.IsNotExist(err) {
		log.Warn("could not read cached tile, treating as changed", "err", err)
	}

	if err := writeAtomic(cachePath, canonical); err != nil {
		return Unavailable, "", fmt.Errorf("ingest: write cache for tile %s: %w", t, err)
	}
	log.Info("change detected, cache updated")
	return Changed, etag, nil
}
