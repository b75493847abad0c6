package wc

import "path/filepath"

// Administrative area layout under a working copy root.
const (
	// AdminDirName is the reserved administrative subdirectory.
	AdminDirName = ".svn"

	// dbName is the SQLite database file inside the admin dir.
	dbName = "wc.db"

	// pristineDirName holds content-addressed pristine texts.
	pristineDirName = "pristine"

	// tempDirName stages files that are atomically renamed into place.
	tempDirName = "tmp"

	// Legacy per-directory format markers. Their presence without wc.db
	// identifies a pre-upgrade working copy.
	legacyEntriesName = "entries"
	legacyFormatName  = "format"

	// upgradeDBName is reserved for staging future schema rewrites.
	upgradeDBName = "wc.db.upgrade"
)

// adminPath joins the admin dir of wcRootAbsPath with the given components.
func adminPath(wcRootAbsPath string, components ...string) string {
	parts := append([]string{wcRootAbsPath, AdminDirName}, components...)
	return filepath.Join(parts...)
}

// dbPath returns the database file path for a working copy root.
func dbPath(wcRootAbsPath string) string {
	return adminPath(wcRootAbsPath, dbName)
}
