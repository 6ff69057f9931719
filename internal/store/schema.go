package store

const schema = `
CREATE TABLE IF NOT EXISTS tile_info (
	id INTEGER NOT NULL PRIMARY KEY,
	tile_x INTEGER NOT NULL,
	tile_y INTEGER NOT NULL,
	queue_temperature INTEGER NOT NULL DEFAULT 999,
	last_checked INTEGER NOT NULL DEFAULT 0,
	last_update INTEGER NOT NULL DEFAULT 0,
	http_etag TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tile_info_queue_temperature_last_checked
	ON tile_info (queue_temperature, last_checked);

CREATE TABLE IF NOT EXISTS project_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	rect_left INTEGER NOT NULL,
	rect_top INTEGER NOT NULL,
	rect_right INTEGER NOT NULL,
	rect_bottom INTEGER NOT NULL,
	state TEXT NOT NULL DEFAULT 'active',
	mtime REAL,
	first_seen INTEGER NOT NULL,
	last_check INTEGER NOT NULL DEFAULT 0,
	max_completion_pixels INTEGER NOT NULL DEFAULT 0,
	max_completion_percent REAL NOT NULL DEFAULT 0,
	max_completion_time INTEGER NOT NULL DEFAULT 0,
	total_progress INTEGER NOT NULL DEFAULT 0,
	total_regress INTEGER NOT NULL DEFAULT 0,
	largest_regress_pixels INTEGER NOT NULL DEFAULT 0,
	has_missing_tiles INTEGER NOT NULL DEFAULT 0,
	tile_last_update_json TEXT NOT NULL DEFAULT '{}',
	tile_updates_24h_json TEXT NOT NULL DEFAULT '[]',
	UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS tile_project (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES project_info (id) ON DELETE CASCADE,
	tile_id INTEGER NOT NULL REFERENCES tile_info (id) ON DELETE CASCADE,
	UNIQUE (tile_id, project_id)
);

CREATE TABLE IF NOT EXISTS history_change (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES project_info (id) ON DELETE CASCADE,
	timestamp INTEGER NOT NULL,
	status TEXT NOT NULL,
	num_remaining INTEGER NOT NULL,
	num_target INTEGER NOT NULL,
	completion_percent REAL NOT NULL,
	progress_pixels INTEGER NOT NULL,
	regress_pixels INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_change_project_timestamp
	ON history_change (project_id, timestamp);
`

func createSchema(exec execer) error {
	_, err := exec.Exec(schema)
	return err
}
