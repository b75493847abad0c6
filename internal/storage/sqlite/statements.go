package sqlite

// StmtID indexes the statement catalogue. Every query the engine issues is
// registered here so the texts live in one place and can be prepared once
// per store.
type StmtID int

const (
	StmtSelectBaseNode StmtID = iota
	StmtInsertBaseNode
	StmtDeleteBaseNode
	StmtSelectBaseChildren
	StmtUpdateBaseDAVCache
	StmtClearBaseDAVCacheRecursive
	StmtUpdateBaseReposRelocate

	StmtSelectWorkingNode
	StmtDeleteWorkingNode
	StmtSelectWorkingChildren
	StmtUpdateWorkingCopyfromRelocate

	StmtSelectActualNode
	StmtInsertActualEmpty
	StmtInsertActualProps
	StmtUpdateActualProps
	StmtDeleteActualNode
	StmtUpdateActualTreeConflict
	StmtUpdateActualChangelist
	StmtResetActualToChangelist
	StmtClearActualTextConflicts
	StmtClearActualPropConflicts

	StmtSelectRepositoryByRoot
	StmtSelectRepositoryByID
	StmtInsertRepository
	StmtUpdateRepositoryRoot

	StmtSelectPristine
	StmtInsertPristine
	StmtDeletePristine
	StmtIncrementPristineRefcount
	StmtDecrementPristineRefcount
	StmtSelectUnreferencedPristines

	StmtSelectLock
	StmtInsertLock
	StmtDeleteLock
	StmtUpdateLockReposRelocate

	StmtInsertWorkItem
	StmtSelectWorkItem
	StmtDeleteWorkItem
	StmtCountWorkItems

	StmtInsertWCLock
	StmtSelectWCLock
	StmtDeleteWCLock

	StmtSelectWCRoot
	StmtInsertWCRoot
)

// Column orders here are load-bearing: the scan helpers in the wc package
// read fields positionally.
var statements = map[StmtID]string{
	StmtSelectBaseNode: `
		SELECT repos_id, repos_relpath, parent_relpath, presence, kind,
		       revision, checksum, translated_size, changed_revision,
		       changed_date, changed_author, depth, symlink_target,
		       last_mod_time, properties, dav_cache, moved_to
		FROM base_node
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtInsertBaseNode: `
		INSERT OR REPLACE INTO base_node (
		    wc_id, local_relpath, repos_id, repos_relpath, parent_relpath,
		    presence, kind, revision, checksum, translated_size,
		    changed_revision, changed_date, changed_author, depth,
		    symlink_target, last_mod_time, properties, dav_cache, moved_to
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

	StmtDeleteBaseNode: `
		DELETE FROM base_node WHERE wc_id = ? AND local_relpath = ?`,

	StmtSelectBaseChildren: `
		SELECT local_relpath FROM base_node
		WHERE wc_id = ? AND parent_relpath = ?
		ORDER BY local_relpath`,

	StmtUpdateBaseDAVCache: `
		UPDATE base_node SET dav_cache = ?
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtClearBaseDAVCacheRecursive: `
		UPDATE base_node SET dav_cache = NULL
		WHERE wc_id = ? AND (local_relpath = ? OR local_relpath LIKE ? ESCAPE '#')`,

	StmtUpdateBaseReposRelocate: `
		UPDATE base_node SET repos_id = ?, dav_cache = NULL
		WHERE wc_id = ? AND repos_id = ?`,

	StmtSelectWorkingNode: `
		SELECT parent_relpath, presence, kind, checksum, translated_size,
		       changed_revision, changed_date, changed_author, depth,
		       symlink_target, copyfrom_repos_id, copyfrom_repos_path,
		       copyfrom_revnum, moved_here, last_mod_time, properties
		FROM working_node
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtDeleteWorkingNode: `
		DELETE FROM working_node WHERE wc_id = ? AND local_relpath = ?`,

	StmtSelectWorkingChildren: `
		SELECT local_relpath FROM working_node
		WHERE wc_id = ? AND parent_relpath = ?
		ORDER BY local_relpath`,

	StmtUpdateWorkingCopyfromRelocate: `
		UPDATE working_node SET copyfrom_repos_id = ?
		WHERE wc_id = ? AND copyfrom_repos_id = ?`,

	StmtSelectActualNode: `
		SELECT parent_relpath, properties, conflict_old, conflict_new,
		       conflict_working, prop_reject, changelist, tree_conflict_data
		FROM actual_node
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtInsertActualEmpty: `
		INSERT INTO actual_node (wc_id, local_relpath, parent_relpath)
		VALUES (?, ?, ?)`,

	StmtInsertActualProps: `
		INSERT INTO actual_node (wc_id, local_relpath, parent_relpath, properties)
		VALUES (?, ?, ?, ?)`,

	StmtUpdateActualProps: `
		UPDATE actual_node SET properties = ?
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtDeleteActualNode: `
		DELETE FROM actual_node WHERE wc_id = ? AND local_relpath = ?`,

	StmtUpdateActualTreeConflict: `
		UPDATE actual_node SET tree_conflict_data = ?
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtUpdateActualChangelist: `
		UPDATE actual_node SET changelist = ?
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtResetActualToChangelist: `
		UPDATE actual_node
		SET properties = NULL, conflict_old = NULL, conflict_new = NULL,
		    conflict_working = NULL, prop_reject = NULL,
		    tree_conflict_data = NULL
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtClearActualTextConflicts: `
		UPDATE actual_node
		SET conflict_old = NULL, conflict_new = NULL, conflict_working = NULL
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtClearActualPropConflicts: `
		UPDATE actual_node SET prop_reject = NULL
		WHERE wc_id = ? AND local_relpath = ?`,

	StmtSelectRepositoryByRoot: `
		SELECT id, uuid FROM repository WHERE root = ?`,

	StmtSelectRepositoryByID: `
		SELECT root, uuid FROM repository WHERE id = ?`,

	StmtInsertRepository: `
		INSERT INTO repository (root, uuid) VALUES (?, ?)`,

	StmtUpdateRepositoryRoot: `
		UPDATE repository SET root = ? WHERE id = ?`,

	StmtSelectPristine: `
		SELECT size, refcount FROM pristine WHERE checksum = ?`,

	StmtInsertPristine: `
		INSERT OR IGNORE INTO pristine (checksum, md5_checksum, size, refcount)
		VALUES (?, ?, ?, 0)`,

	StmtDeletePristine: `
		DELETE FROM pristine WHERE checksum = ? AND refcount = 0`,

	StmtIncrementPristineRefcount: `
		UPDATE pristine SET refcount = refcount + 1 WHERE checksum = ?`,

	StmtDecrementPristineRefcount: `
		UPDATE pristine SET refcount = MAX(refcount - 1, 0) WHERE checksum = ?`,

	StmtSelectUnreferencedPristines: `
		SELECT checksum FROM pristine WHERE refcount = 0`,

	StmtSelectLock: `
		SELECT lock_token, lock_owner, lock_comment, lock_date
		FROM lock
		WHERE repos_id = ? AND repos_relpath = ?`,

	StmtInsertLock: `
		INSERT OR REPLACE INTO lock
		    (repos_id, repos_relpath, lock_token, lock_owner, lock_comment, lock_date)
		VALUES (?, ?, ?, ?, ?, ?)`,

	StmtDeleteLock: `
		DELETE FROM lock WHERE repos_id = ? AND repos_relpath = ?`,

	StmtUpdateLockReposRelocate: `
		UPDATE lock SET repos_id = ? WHERE repos_id = ?`,

	StmtInsertWorkItem: `
		INSERT INTO work_queue (work) VALUES (?)`,

	StmtSelectWorkItem: `
		SELECT id, work FROM work_queue ORDER BY id LIMIT 1`,

	StmtDeleteWorkItem: `
		DELETE FROM work_queue WHERE id = ?`,

	StmtCountWorkItems: `
		SELECT COUNT(*) FROM work_queue`,

	StmtInsertWCLock: `
		INSERT INTO wc_lock (wc_id, local_dir_relpath) VALUES (?, ?)`,

	StmtSelectWCLock: `
		SELECT 1 FROM wc_lock WHERE wc_id = ? AND local_dir_relpath = ?`,

	StmtDeleteWCLock: `
		DELETE FROM wc_lock WHERE wc_id = ? AND local_dir_relpath = ?`,

	StmtSelectWCRoot: `
		SELECT id FROM wcroot WHERE local_abspath IS ?`,

	StmtInsertWCRoot: `
		INSERT INTO wcroot (local_abspath) VALUES (?)`,
}

// Text returns the SQL text for id, for use inside transactions where the
// store's prepared handles do not apply.
func Text(id StmtID) string { return statements[id] }
