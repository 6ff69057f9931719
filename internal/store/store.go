// Package store implements the durable relational state for tiles,
// projects, the tile/project relation, and history changes (§3, §4.3, §6
// of the spec). It is backed by a single embedded SQLite database,
// following the teacher's modernc.org/sqlite + WAL pragma pattern
// (internal/mbtiles/writer.go in the example pack).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/wplace-monitor/wplace-monitor/internal/geometry"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting every query
// method work identically inside or outside a transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Store is the durable relational Store described by §4.3/§6.
type Store struct {
	db      *sql.DB
	queries queries
}

// Tx is a Store bound to a single transaction; used by operations that
// must be atomic across several statements (redistribute). Project sync
// does not use it: its store calls each commit on their own.
type Tx struct {
	queries queries
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db, queries: queries{q: db}}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single SQLite transaction, as required by the
// redistribute operation (§4.3: "multi-statement operations ... run
// inside a single transaction").
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrTransient, err)
	}

	if err := fn(&Tx{queries: queries{q: sqlTx}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrTransient, err)
	}
	return nil
}

// WithRetry retries a StoreTransient operation once before surfacing it,
// per the §7 error policy. It uses a one-shot exponential backoff (a
// single retry, not an open-ended loop) grounded on the retry-config
// pattern in internal/datasource/overpass.go of the teacher.
func WithRetry(fn func() error) error {
	attempt := 0
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)

	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func isTransient(err error) bool {
	for err != nil {
		if err == ErrTransient {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}

// --- Tile rows -------------------------------------------------------

// GetTile returns the tile row for (tx, ty), or ErrNotFound if it has
// never been observed.
func (s *Store) GetTile(tx, ty int) (*Tile, error) { return s.queries.getTile(tx, ty) }

// UpsertTile ensures a tile row exists for (tx, ty). If it does not yet
// exist it is created with heat=999 ("burning"), per the Tile lifecycle
// in §3. Returns the (possibly pre-existing) row.
func (s *Store) UpsertTile(tx, ty int) (*Tile, error) { return s.queries.upsertTile(tx, ty) }

// MarkChecked records the outcome of an Ingest run against a tile,
// following the on-change last_update policy of §7: last_update only
// advances when changed is true.
func (s *Store) MarkChecked(tileID int, now int64, changed bool, etag string) error {
	return s.queries.markChecked(tileID, now, changed, etag)
}

// SetTileInactive zeroes a tile's heat, excluding it from scheduling.
func (s *Store) SetTileInactive(tileID int) error { return s.queries.setHeat(tileID, HeatInactive) }

// TilesInHeat returns all tiles currently at the given heat.
func (s *Store) TilesInHeat(heat int) ([]Tile, error) { return s.queries.tilesInHeat(heat) }

// TilesInHeatOrderedByLastChecked returns tiles at the given heat ordered
// ascending by last_checked (least recently polled first).
func (s *Store) TilesInHeatOrderedByLastChecked(heat int) ([]Tile, error) {
	return s.queries.tilesInHeatOrderedByLastChecked(heat)
}

// TilesForRedistribution returns every tile eligible for redistribution
// (§4.3), ordered by last_update descending.
func (s *Store) TilesForRedistribution() ([]Tile, error) {
	return s.queries.tilesForRedistribution()
}

// NumTemperatureQueues returns the highest heat h with any tile at
// 1 <= h <= 998, or 0 if none exist.
func (s *Store) NumTemperatureQueues() (int, error) { return s.queries.numTemperatureQueues() }

// SetTileHeat writes a tile's heat, only generating a write when the
// value actually changes (the optimistic no-op fast path of §4.6).
func (s *Store) SetTileHeat(tileID, heat int) error { return s.queries.setHeat(tileID, heat) }

// AllActiveTiles returns every tile row with heat != 0 (i.e. overlapped by
// at least one active project at some point), ordered by id. Used by the
// rebuild tool (§6) to re-ingest the full known tile set.
func (s *Store) AllActiveTiles() ([]Tile, error) { return s.queries.allActiveTiles() }

func (tx *Tx) GetTile(ttx, tty int) (*Tile, error)     { return tx.queries.getTile(ttx, tty) }
func (tx *Tx) UpsertTile(ttx, tty int) (*Tile, error)  { return tx.queries.upsertTile(ttx, tty) }
func (tx *Tx) TilesForRedistribution() ([]Tile, error) { return tx.queries.tilesForRedistribution() }
func (tx *Tx) SetTileHeat(tileID, heat int) error      { return tx.queries.setHeat(tileID, heat) }
func (tx *Tx) NumTemperatureQueues() (int, error)      { return tx.queries.numTemperatureQueues() }

// --- Projects ----------------------------------------------------------

// CreateProject inserts a new active project row and returns the assigned
// id. It creates no Tile rows and no TileProject links; project_sync
// (§4.8) adds those with UpsertTile and LinkTileProject.
func (s *Store) CreateProject(p *Project) (int, error) { return s.queries.createProject(p) }

// GetProjectByPath looks up a project by its source file path.
func (s *Store) GetProjectByPath(path string) (*Project, error) {
	return s.queries.getProjectByPath(path)
}

// ListActiveProjects returns every project in the active state.
func (s *Store) ListActiveProjects() ([]Project, error) { return s.queries.listActiveProjects() }

// SetProjectState marks a project active or inactive.
func (s *Store) SetProjectState(id int, state ProjectState) error {
	return s.queries.setProjectState(id, state)
}

// RetireProject marks a project inactive and frees its (owner_id, name)
// slot by suffixing the name with the retired row's id, so a later
// reload of the same project file (§4.8: "a modified project file is
// reloaded as forget+recreate") does not collide with the UNIQUE
// (owner_id, name) constraint that keeps an owner's active projects
// uniquely named.
func (s *Store) RetireProject(id int) error {
	return s.queries.retireProject(id)
}

// UnlinkProjectTiles removes all TileProject rows for a project (used
// when a project disappears, §4.8).
func (s *Store) UnlinkProjectTiles(projectID int) error {
	return s.queries.unlinkProjectTiles(projectID)
}

// UpdateProjectMetadata persists the full mutable state of a project
// (rolling aggregates, tile_last_update, tile_updates_24h) after a Diff
// Engine run (§4.7 step 11).
func (s *Store) UpdateProjectMetadata(p *Project) error {
	return s.queries.updateProjectMetadata(p)
}

// ProjectsOverlappingTile returns every active project whose rectangle
// overlaps the given tile, via the TileProject index (§3, §9).
func (s *Store) ProjectsOverlappingTile(tileID int) ([]Project, error) {
	return s.queries.projectsOverlappingTile(tileID)
}

// AppendHistory appends a HistoryChange row for a project (§4.7 step 10).
func (s *Store) AppendHistory(h *HistoryChange) (int, error) { return s.queries.appendHistory(h) }

// HistoryForProject returns all history rows for a project, ordered by
// timestamp ascending (history is monotone per project, §8).
func (s *Store) HistoryForProject(projectID int) ([]HistoryChange, error) {
	return s.queries.historyForProject(projectID)
}

func (tx *Tx) CreateProject(p *Project) (int, error) { return tx.queries.createProject(p) }
func (tx *Tx) UnlinkProjectTiles(projectID int) error {
	return tx.queries.unlinkProjectTiles(projectID)
}
func (tx *Tx) SetProjectState(id int, state ProjectState) error {
	return tx.queries.setProjectState(id, state)
}

// --- queries: shared implementation over dbtx ---------------------------

type queries struct {
	q dbtx
}

func (q queries) getTile(tx, ty int) (*Tile, error) {
	id := geometry.Tile{X: tx, Y: ty}.ID()
	row := q.q.QueryRow(`SELECT id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag
		FROM tile_info WHERE id = ?`, id)
	return scanTile(row)
}

func scanTile(row *sql.Row) (*Tile, error) {
	var t Tile
	err := row.Scan(&t.ID, &t.X, &t.Y, &t.Heat, &t.LastChecked, &t.LastUpdate, &t.ETag)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan tile: %v", ErrTransient, err)
	}
	return &t, nil
}

func (q queries) upsertTile(tx, ty int) (*Tile, error) {
	id := geometry.Tile{X: tx, Y: ty}.ID()
	_, err := q.q.Exec(`INSERT INTO tile_info (id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag)
		VALUES (?, ?, ?, ?, 0, 0, '')
		ON CONFLICT (id) DO NOTHING`, id, tx, ty, HeatBurning)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert tile: %v", ErrTransient, err)
	}
	return q.getTile(tx, ty)
}

func (q queries) markChecked(tileID int, now int64, changed bool, etag string) error {
	var err error
	if changed {
		_, err = q.q.Exec(`UPDATE tile_info SET last_checked = ?, last_update = ?, http_etag = ? WHERE id = ?`,
			now, now, etag, tileID)
	} else {
		_, err = q.q.Exec(`UPDATE tile_info SET last_checked = ?, http_etag = ? WHERE id = ?`, now, etag, tileID)
	}
	if err != nil {
		return fmt.Errorf("%w: mark checked: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) setHeat(tileID, heat int) error {
	_, err := q.q.Exec(`UPDATE tile_info SET queue_temperature = ? WHERE id = ? AND queue_temperature != ?`,
		heat, tileID, heat)
	if err != nil {
		return fmt.Errorf("%w: set heat: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) tilesInHeat(heat int) ([]Tile, error) {
	rows, err := q.q.Query(`SELECT id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag
		FROM tile_info WHERE queue_temperature = ?`, heat)
	if err != nil {
		return nil, fmt.Errorf("%w: tiles in heat: %v", ErrTransient, err)
	}
	return scanTiles(rows)
}

func (q queries) tilesInHeatOrderedByLastChecked(heat int) ([]Tile, error) {
	rows, err := q.q.Query(`SELECT id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag
		FROM tile_info WHERE queue_temperature = ? ORDER BY last_checked ASC, id ASC`, heat)
	if err != nil {
		return nil, fmt.Errorf("%w: tiles in heat ordered: %v", ErrTransient, err)
	}
	return scanTiles(rows)
}

func (q queries) tilesForRedistribution() ([]Tile, error) {
	rows, err := q.q.Query(`SELECT id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag
		FROM tile_info
		WHERE (queue_temperature = ? AND last_update > 0)
		   OR (queue_temperature BETWEEN 1 AND 998)
		ORDER BY last_update DESC, id ASC`, HeatBurning)
	if err != nil {
		return nil, fmt.Errorf("%w: tiles for redistribution: %v", ErrTransient, err)
	}
	return scanTiles(rows)
}

func (q queries) numTemperatureQueues() (int, error) {
	row := q.q.QueryRow(`SELECT COALESCE(MAX(queue_temperature), 0) FROM tile_info WHERE queue_temperature BETWEEN 1 AND 998`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: num temperature queues: %v", ErrTransient, err)
	}
	return n, nil
}

func (q queries) allActiveTiles() ([]Tile, error) {
	rows, err := q.q.Query(`SELECT id, tile_x, tile_y, queue_temperature, last_checked, last_update, http_etag
		FROM tile_info WHERE queue_temperature != ? ORDER BY id ASC`, HeatInactive)
	if err != nil {
		return nil, fmt.Errorf("%w: all active tiles: %v", ErrTransient, err)
	}
	return scanTiles(rows)
}

func scanTiles(rows *sql.Rows) ([]Tile, error) {
	defer rows.Close()
	var out []Tile
	for rows.Next() {
		var t Tile
		if err := rows.Scan(&t.ID, &t.X, &t.Y, &t.Heat, &t.LastChecked, &t.LastUpdate, &t.ETag); err != nil {
			return nil, fmt.Errorf("%w: scan tile row: %v", ErrTransient, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tile rows: %v", ErrTransient, err)
	}
	return out, nil
}

const projectColumns = `id, owner_id, name, path, rect_left, rect_top, rect_right, rect_bottom, state, mtime,
	first_seen, last_check, max_completion_pixels, max_completion_percent, max_completion_time,
	total_progress, total_regress, largest_regress_pixels, has_missing_tiles,
	tile_last_update_json, tile_updates_24h_json`

func (q queries) createProject(p *Project) (int, error) {
	res, err := q.q.Exec(`INSERT INTO project_info
		(owner_id, name, path, rect_left, rect_top, rect_right, rect_bottom, state, mtime, first_seen, last_check)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		p.OwnerID, p.Name, p.Path, p.Rect.Left, p.Rect.Top, p.Rect.Right, p.Rect.Bottom, string(ProjectActive), p.Mtime, p.FirstSeen)
	if err != nil {
		return 0, fmt.Errorf("%w: create project: %v", ErrTransient, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: create project id: %v", ErrTransient, err)
	}
	return int(id), nil
}

func (q queries) getProjectByPath(path string) (*Project, error) {
	row := q.q.QueryRow(`SELECT `+projectColumns+` FROM project_info WHERE path = ?`, path)
	return scanProject(row)
}

func (q queries) listActiveProjects() ([]Project, error) {
	rows, err := q.q.Query(`SELECT `+projectColumns+` FROM project_info WHERE state = ?`, string(ProjectActive))
	if err != nil {
		return nil, fmt.Errorf("%w: list active projects: %v", ErrTransient, err)
	}
	return scanProjects(rows)
}

func (q queries) setProjectState(id int, state ProjectState) error {
	_, err := q.q.Exec(`UPDATE project_info SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("%w: set project state: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) retireProject(id int) error {
	_, err := q.q.Exec(`UPDATE project_info
		SET state = ?, name = name || '#retired-' || id
		WHERE id = ?`, string(ProjectInactive), id)
	if err != nil {
		return fmt.Errorf("%w: retire project: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) unlinkProjectTiles(projectID int) error {
	_, err := q.q.Exec(`DELETE FROM tile_project WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("%w: unlink project tiles: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) linkTileProject(tileID, projectID int) error {
	_, err := q.q.Exec(`INSERT INTO tile_project (project_id, tile_id) VALUES (?, ?)
		ON CONFLICT (tile_id, project_id) DO NOTHING`, projectID, tileID)
	if err != nil {
		return fmt.Errorf("%w: link tile project: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) updateProjectMetadata(p *Project) error {
	lastUpdateJSON, err := json.Marshal(p.TileLastUpdate)
	if err != nil {
		return fmt.Errorf("store: marshal tile_last_update: %w", err)
	}
	updates24hJSON, err := json.Marshal(p.TileUpdates24h)
	if err != nil {
		return fmt.Errorf("store: marshal tile_updates_24h: %w", err)
	}

	_, err = q.q.Exec(`UPDATE project_info SET
		state = ?, last_check = ?, max_completion_pixels = ?, max_completion_percent = ?,
		max_completion_time = ?, total_progress = ?, total_regress = ?, largest_regress_pixels = ?,
		has_missing_tiles = ?, tile_last_update_json = ?, tile_updates_24h_json = ?, mtime = ?
		WHERE id = ?`,
		string(p.State), p.LastCheck, p.MaxCompletionPixels, p.MaxCompletionPercent,
		p.MaxCompletionTime, p.TotalProgress, p.TotalRegress, p.LargestRegressPixels,
		boolToInt(p.HasMissingTiles), string(lastUpdateJSON), string(updates24hJSON), p.Mtime,
		p.ID)
	if err != nil {
		return fmt.Errorf("%w: update project metadata: %v", ErrTransient, err)
	}
	return nil
}

func (q queries) projectsOverlappingTile(tileID int) ([]Project, error) {
	rows, err := q.q.Query(`SELECT `+projectColumnsPrefixed("p.")+`
		FROM project_info p
		JOIN tile_project tp ON tp.project_id = p.id
		WHERE tp.tile_id = ? AND p.state = ?`, tileID, string(ProjectActive))
	if err != nil {
		return nil, fmt.Errorf("%w: projects overlapping tile: %v", ErrTransient, err)
	}
	return scanProjects(rows)
}

func projectColumnsPrefixed(prefix string) string {
	cols := []string{"id", "owner_id", "name", "path", "rect_left", "rect_top", "rect_right", "rect_bottom",
		"state", "mtime", "first_seen", "last_check", "max_completion_pixels", "max_completion_percent",
		"max_completion_time", "total_progress", "total_regress", "largest_regress_pixels",
		"has_missing_tiles", "tile_last_update_json", "tile_updates_24h_json"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += prefix + c
	}
	return out
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var state string
	var lastUpdateJSON, updates24hJSON string
	var hasMissing int

	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Path, &p.Rect.Left, &p.Rect.Top, &p.Rect.Right, &p.Rect.Bottom,
		&state, &p.Mtime, &p.FirstSeen, &p.LastCheck, &p.MaxCompletionPixels, &p.MaxCompletionPercent,
		&p.MaxCompletionTime, &p.TotalProgress, &p.TotalRegress, &p.LargestRegressPixels,
		&hasMissing, &lastUpdateJSON, &updates24hJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan project: %v", ErrTransient, err)
	}

	p.State = ProjectState(state)
	p.HasMissingTiles = hasMissing != 0
	if err := json.Unmarshal([]byte(lastUpdateJSON), &p.TileLastUpdate); err != nil {
		return nil, fmt.Errorf("store: unmarshal tile_last_update: %w", err)
	}
	if err := json.Unmarshal([]byte(updates24hJSON), &p.TileUpdates24h); err != nil {
		return nil, fmt.Errorf("store: unmarshal tile_updates_24h: %w", err)
	}
	return &p, nil
}

func scanProjects(rows *sql.Rows) ([]Project, error) {
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		var state string
		var lastUpdateJSON, updates24hJSON string
		var hasMissing int

		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Path, &p.Rect.Left, &p.Rect.Top, &p.Rect.Right, &p.Rect.Bottom,
			&state, &p.Mtime, &p.FirstSeen, &p.LastCheck, &p.MaxCompletionPixels, &p.MaxCompletionPercent,
			&p.MaxCompletionTime, &p.TotalProgress, &p.TotalRegress, &p.LargestRegressPixels,
			&hasMissing, &lastUpdateJSON, &updates24hJSON); err != nil {
			return nil, fmt.Errorf("%w: scan project row: %v", ErrTransient, err)
		}
		p.State = ProjectState(state)
		p.HasMissingTiles = hasMissing != 0
		if err := json.Unmarshal([]byte(lastUpdateJSON), &p.TileLastUpdate); err != nil {
			return nil, fmt.Errorf("store: unmarshal tile_last_update: %w", err)
		}
		if err := json.Unmarshal([]byte(updates24hJSON), &p.TileUpdates24h); err != nil {
			return nil, fmt.Errorf("store: unmarshal tile_updates_24h: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate project rows: %v", ErrTransient, err)
	}
	return out, nil
}

func (q queries) appendHistory(h *HistoryChange) (int, error) {
	res, err := q.q.Exec(`INSERT INTO history_change
		(project_id, timestamp, status, num_remaining, num_target, completion_percent, progress_pixels, regress_pixels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ProjectID, h.Timestamp, h.Status, h.NumRemaining, h.NumTarget, h.CompletionPercent, h.ProgressPixels, h.RegressPixels)
	if err != nil {
		return 0, fmt.Errorf("%w: append history: %v", ErrTransient, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: append history id: %v", ErrTransient, err)
	}
	return int(id), nil
}

func (q queries) historyForProject(projectID int) ([]HistoryChange, error) {
	rows, err := q.q.Query(`SELECT id, project_id, timestamp, status, num_remaining, num_target, completion_percent, progress_pixels, regress_pixels
		FROM history_change WHERE project_id = ? ORDER BY timestamp ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: history for project: %v", ErrTransient, err)
	}
	defer rows.Close()

	var out []HistoryChange
	for rows.Next() {
		var h HistoryChange
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.Timestamp, &h.Status, &h.NumRemaining, &h.NumTarget,
			&h.CompletionPercent, &h.ProgressPixels, &h.RegressPixels); err != nil {
			return nil, fmt.Errorf("%w: scan history row: %v", ErrTransient, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LinkTileProject links a tile to a project, creating the TileProject row
// if it doesn't already exist.
func (s *Store) LinkTileProject(tileID, projectID int) error {
	return s.queries.linkTileProject(tileID, projectID)
}

func (tx *Tx) LinkTileProject(tileID, projectID int) error {
	return tx.queries.linkTileProject(tileID, projectID)
}
