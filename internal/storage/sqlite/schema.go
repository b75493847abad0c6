package sqlite

// baselineVersion is the schema created by the baseline DDL below. Databases
// older than this predate the single-database layout and cannot be opened;
// newer versions are reached through the migration ladder in migrations.go.
const baselineVersion = 12

// CurrentVersion is the schema version this code writes and expects after
// migration.
const CurrentVersion = 15

// MinimumVersion is the oldest schema version recognized at all. Anything
// below it is pre-modern and rejected outright.
const MinimumVersion = 4

// schema is the baseline (version 12) DDL. Columns added by later versions
// live in their migration, never here, so that a migrated database and a
// freshly created one are built through the identical ladder.
const schema = `
-- Interned repository identities. root is the repository root URL.
CREATE TABLE IF NOT EXISTS repository (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    root TEXT UNIQUE NOT NULL,
    uuid TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS i_uuid ON repository (uuid);
CREATE INDEX IF NOT EXISTS i_root ON repository (root);

-- One row per working copy root served by this database. With the
-- single-database layout there is exactly one, with local_abspath NULL.
CREATE TABLE IF NOT EXISTS wcroot (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    local_abspath TEXT UNIQUE
);

-- The BASE layer: what the repository told us at the recorded revision.
CREATE TABLE IF NOT EXISTS base_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    repos_id INTEGER REFERENCES repository (id),
    repos_relpath TEXT,
    parent_relpath TEXT,
    presence TEXT NOT NULL DEFAULT 'normal',
    kind TEXT NOT NULL,
    revision INTEGER,
    checksum TEXT,
    translated_size INTEGER,
    changed_revision INTEGER,
    changed_date INTEGER,
    changed_author TEXT,
    depth TEXT,
    symlink_target TEXT,
    last_mod_time INTEGER,
    properties BLOB,
    PRIMARY KEY (wc_id, local_relpath)
);

CREATE INDEX IF NOT EXISTS i_parent ON base_node (wc_id, parent_relpath);

-- The WORKING layer: local pending adds, copies, moves, deletes.
CREATE TABLE IF NOT EXISTS working_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    parent_relpath TEXT,
    presence TEXT NOT NULL DEFAULT 'normal',
    kind TEXT NOT NULL,
    checksum TEXT,
    translated_size INTEGER,
    changed_revision INTEGER,
    changed_date INTEGER,
    changed_author TEXT,
    depth TEXT,
    symlink_target TEXT,
    copyfrom_repos_id INTEGER REFERENCES repository (id),
    copyfrom_repos_path TEXT,
    copyfrom_revnum INTEGER,
    last_mod_time INTEGER,
    properties BLOB,
    PRIMARY KEY (wc_id, local_relpath)
);

CREATE INDEX IF NOT EXISTS i_working_parent ON working_node (wc_id, parent_relpath);

-- The ACTUAL layer: property overrides, conflicts, changelists.
CREATE TABLE IF NOT EXISTS actual_node (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_relpath TEXT NOT NULL,
    parent_relpath TEXT,
    properties BLOB,
    conflict_old TEXT,
    conflict_new TEXT,
    conflict_working TEXT,
    prop_reject TEXT,
    changelist TEXT,
    tree_conflict_data TEXT,
    PRIMARY KEY (wc_id, local_relpath)
);

CREATE INDEX IF NOT EXISTS i_actual_parent ON actual_node (wc_id, parent_relpath);

-- Content-addressed pristine text registry. The bytes live on disk under
-- the pristine directory; this records existence and exact size.
CREATE TABLE IF NOT EXISTS pristine (
    checksum TEXT NOT NULL PRIMARY KEY,
    md5_checksum TEXT,
    size INTEGER NOT NULL
);

-- Repository-level lock tokens attached to BASE nodes.
CREATE TABLE IF NOT EXISTS lock (
    repos_id INTEGER NOT NULL REFERENCES repository (id),
    repos_relpath TEXT NOT NULL,
    lock_token TEXT NOT NULL,
    lock_owner TEXT,
    lock_comment TEXT,
    lock_date INTEGER,
    PRIMARY KEY (repos_id, repos_relpath)
);

-- Deferred filesystem operations, replayed in id order after a crash.
CREATE TABLE IF NOT EXISTS work_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    work BLOB NOT NULL
);

-- Advisory locks taken by processes operating on this working copy.
CREATE TABLE IF NOT EXISTS wc_lock (
    wc_id INTEGER NOT NULL REFERENCES wcroot (id),
    local_dir_relpath TEXT NOT NULL,
    PRIMARY KEY (wc_id, local_dir_relpath)
);
`
