package sqlite

// SchemaSQL is the authoritative schema for fresh databases. Tests open
// in-memory databases against this same DDL, so a query referencing a
// column that does not exist here fails immediately in tests.
//
// Timestamps are stored as INTEGER unix seconds and durations as
// INTEGER seconds, so the stats queries can aggregate with plain SQL
// arithmetic.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS vessels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	class TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('import', 'export')),
	priority INTEGER NOT NULL CHECK(priority BETWEEN 1 AND 3),
	estimated_duration_s INTEGER NOT NULL,
	arrival INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS customs_clearance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vessel_id INTEGER NOT NULL UNIQUE,
	status TEXT NOT NULL CHECK(status IN ('approved', 'pending', 'under_review')),
	FOREIGN KEY (vessel_id) REFERENCES vessels(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS berths (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	number INTEGER NOT NULL UNIQUE,
	state TEXT NOT NULL CHECK(state IN ('available', 'occupied', 'maintenance')) DEFAULT 'available',
	maintenance_start INTEGER,
	maintenance_end INTEGER,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vessel_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vessel_id INTEGER NOT NULL,
	arrival INTEGER NOT NULL,
	state TEXT NOT NULL CHECK(state IN ('waiting', 'in_service', 'completed')) DEFAULT 'waiting',
	service_start INTEGER,
	service_end INTEGER,
	FOREIGN KEY (vessel_id) REFERENCES vessels(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS operations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vessel_id INTEGER NOT NULL,
	berth_id INTEGER NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('import', 'export')),
	start INTEGER NOT NULL,
	planned_duration_s INTEGER NOT NULL,
	scheduled_end INTEGER NOT NULL,
	actual_duration_s INTEGER,
	state TEXT NOT NULL CHECK(state IN ('in_progress', 'completed')) DEFAULT 'in_progress',
	FOREIGN KEY (vessel_id) REFERENCES vessels(id),
	FOREIGN KEY (berth_id) REFERENCES berths(id)
);

CREATE INDEX IF NOT EXISTS idx_queue_state ON vessel_queue(state);
CREATE INDEX IF NOT EXISTS idx_operations_state ON operations(state, scheduled_end);
`
