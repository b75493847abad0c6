package wc

import "github.com/wshe1978/subversion/internal/types"

// Lock is a repository-level lock token attached to a BASE node.
type Lock struct {
	Token   string
	Owner   string
	Comment string
	// Date is microseconds since epoch, matching the changed_date scale.
	Date int64
}

// Info is the arbitrated view of one node, joining the BASE, WORKING, and
// ACTUAL layers. Zero/empty fields mean "not recorded".
type Info struct {
	Status               types.Status
	Kind                 types.NodeKind
	Revision             int64
	ReposRelPath         string
	ReposRootURL         string
	ReposUUID            string
	ChangedRev           int64
	ChangedDate          int64
	ChangedAuthor        string
	Depth                types.Depth
	Checksum             types.Checksum
	TranslatedSize       int64
	Target               string
	Changelist           string
	OriginalReposRelPath string
	OriginalRevision     int64
	Conflicted           bool
	HaveBase             bool
	HaveWorking          bool
}

// BaseInfo is the BASE-layer view of one node, untouched by local changes.
type BaseInfo struct {
	Status         types.Status
	Kind           types.NodeKind
	Revision       int64
	ReposRelPath   string
	ReposRootURL   string
	ReposUUID      string
	ChangedRev     int64
	ChangedDate    int64
	ChangedAuthor  string
	Depth          types.Depth
	Checksum       types.Checksum
	TranslatedSize int64
	Target         string
	Lock           *Lock
}

// AdditionInfo is the result of scanning an added subtree upward for its
// operation root.
type AdditionInfo struct {
	Status        types.Status
	OpRootAbsPath string
	ReposRelPath  string
	ReposRootURL  string
	ReposUUID     string
	// Original* describe the copy/move source when Status is copied or
	// moved-here.
	OriginalReposRelPath string
	OriginalRootURL      string
	OriginalUUID         string
	OriginalRevision     int64
}

// DeletionInfo is the result of scanning a deleted subtree upward.
type DeletionInfo struct {
	BaseDelAbsPath string
	BaseReplaced   bool
	MovedToAbsPath string
	WorkDelAbsPath string
}

// BaseNode carries the column values for one BASE row being installed by
// checkout or update. Kind-specific fields are read only by the matching
// BaseAdd operation.
type BaseNode struct {
	ReposRelPath  string
	ReposRootURL  string
	ReposUUID     string
	Revision      int64
	Props         map[string]string
	ChangedRev    int64
	ChangedDate   int64
	ChangedAuthor string
	DAVCache      map[string]string

	// Directories.
	Children []string
	Depth    types.Depth

	// Files.
	Checksum       types.Checksum
	TranslatedSize int64

	// Symlinks.
	Target string
}

// Commit carries the post-commit state applied by GlobalCommit.
type Commit struct {
	NewRevision   int64
	ChangedDate   int64
	ChangedAuthor string
	NewChecksum   types.Checksum
	NewChildren   []string
	NewDAVCache   map[string]string
	KeepChangelist bool
}
