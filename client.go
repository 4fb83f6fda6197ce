package xrootdfs

import "time"

// Status is the per-call result indicator used by XRootD connectors.
// Failure is reported through status values, never through Go errors;
// translation into the error taxonomy happens exactly once, in errors.go.
type Status struct {
	Code    int
	Errno   int
	Message string
}

// IsOK reports whether the call the status belongs to succeeded.
func (s Status) IsOK() bool { return s.Code == 0 }

// XRootD protocol error numbers surfaced in Status.Errno.
const (
	ErrnoFSError        = 3005 // directory not empty, or not a directory
	ErrnoInvalidRequest = 3006 // destination exists (legacy v4 servers)
	ErrnoIOError        = 3007
	ErrnoNotFound       = 3011
	ErrnoNotSupported   = 3013
	ErrnoItExists       = 3018 // destination exists (v5 servers)
	ErrnoPosixExists    = 17   // EEXIST passed through verbatim
)

// OpenFlags is the kXR_open flag set.
type OpenFlags uint16

const (
	OpenFlagsNone     OpenFlags = 0
	OpenFlagsCompress OpenFlags = 1
	OpenFlagsDelete   OpenFlags = 2
	OpenFlagsForce    OpenFlags = 4
	OpenFlagsNew      OpenFlags = 8
	OpenFlagsRead     OpenFlags = 16
	OpenFlagsUpdate   OpenFlags = 32
	OpenFlagsMkPath   OpenFlags = 256
)

// StatFlags describes a stat response.
type StatFlags uint32

const (
	StatFlagsXBitSet    StatFlags = 1
	StatFlagsIsDir      StatFlags = 2
	StatFlagsOther      StatFlags = 4
	StatFlagsOffline    StatFlags = 8
	StatFlagsIsReadable StatFlags = 16
	StatFlagsIsWritable StatFlags = 32
)

type MkDirFlags uint16

const (
	MkDirFlagsNone     MkDirFlags = 0
	MkDirFlagsMakePath MkDirFlags = 1
)

type DirListFlags uint16

const (
	DirListFlagsNone DirListFlags = 0
	DirListFlagsStat DirListFlags = 2
)

type QueryCode uint16

const (
	QueryCodeChecksum QueryCode = 3
	QueryCodeXAttr    QueryCode = 4
)

// AccessMode is the POSIX-style permission set passed to Mkdir.
type AccessMode uint16

const AccessModeNone AccessMode = 0

// StatInfo is the subset of a stat response the adapter consumes.
type StatInfo struct {
	ID      string
	Size    int64
	Flags   StatFlags
	ModTime time.Time
}

// DirEntry is one entry of a directory listing. Stat is populated only
// when the listing was requested with DirListFlagsStat.
type DirEntry struct {
	Name string
	Stat *StatInfo
}

// Client is an XRootD protocol connector bound to a single server.
// Implementations perform blocking round trips and signal failure through
// the returned Status.
type Client interface {
	Open(path string, flags OpenFlags) (FileClient, Status)
	Stat(path string) (StatInfo, Status)
	Dirlist(path string, flags DirListFlags) ([]DirEntry, Status)
	Mkdir(path string, flags MkDirFlags, mode AccessMode) Status
	Rm(path string) Status
	RmDir(path string) Status
	Mv(src, dst string) Status
	Copy(src, dst string, force bool) Status
	Query(code QueryCode, arg string) ([]byte, Status)
	Ping() Status
}

// FileClient is one open remote file. All reads and writes are addressed
// by explicit byte offsets; the connector keeps no cursor of its own.
type FileClient interface {
	ReadAt(p []byte, off int64) (int, Status)
	WriteAt(p []byte, off int64) (int, Status)
	Stat() (StatInfo, Status)
	Truncate(size int64) Status
	Sync() Status
	Close() Status
	IsOpen() bool
}
