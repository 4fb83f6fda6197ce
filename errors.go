package xrootdfs

import (
	"fmt"
	"strings"
)

// PathError indicates a string that is not a valid root:// URL.
type PathError struct {
	URL string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("not a valid root URL: %q", e.URL)
}

// InvalidPathError indicates a path that violates the XRootD path grammar
// (double-slash rooted, no other adjacent slashes).
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("not a valid xrootd path: %q", e.Path)
}

// BackReferenceError indicates a path whose ".." components escape the
// filesystem root.
type BackReferenceError struct {
	Path string
}

func (e *BackReferenceError) Error() string {
	return fmt.Sprintf("too many backrefs in path: %q", e.Path)
}

// NotFoundError indicates a resource that does not exist on the server.
type NotFoundError struct {
	Path   string
	Status Status
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s: %s", e.Path, e.Status.Message)
}

// DestinationExistsError indicates a destination that already exists.
type DestinationExistsError struct {
	Path   string
	Status Status
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination exists: %s: %s", e.Path, e.Status.Message)
}

// DirectoryNotEmptyError indicates a directory that could not be removed
// because it still has entries.
type DirectoryNotEmptyError struct {
	Path   string
	Status Status
}

func (e *DirectoryNotEmptyError) Error() string {
	return fmt.Sprintf("directory not empty: %s: %s", e.Path, e.Status.Message)
}

// ResourceInvalidError indicates a resource of the wrong type, e.g. a file
// where a directory was expected.
type ResourceInvalidError struct {
	Path   string
	Msg    string
	Status Status
}

func (e *ResourceInvalidError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Msg, e.Path)
	}
	return fmt.Sprintf("resource invalid: %s: %s", e.Path, e.Status.Message)
}

// UnsupportedError indicates an operation the server or the adapter does
// not provide.
type UnsupportedError struct {
	Msg    string
	Status Status
}

func (e *UnsupportedError) Error() string {
	if e.Msg != "" {
		return "unsupported: " + e.Msg
	}
	return "unsupported: " + e.Status.Message
}

// RemoteConnectionError indicates a failed connectivity probe.
type RemoteConnectionError struct {
	Status Status
}

func (e *RemoteConnectionError) Error() string {
	return "remote connection error: " + e.Status.Message
}

// ResourceError is the catch-all for remote failures that do not map to a
// more specific kind. It carries the server message verbatim.
type ResourceError struct {
	Path   string
	Op     string
	Msg    string
	Status Status
}

func (e *ResourceError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Status.Message
	}
	if e.Op != "" {
		return fmt.Sprintf("xrootd error %s file %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("xrootd error: %s: %s", e.Path, msg)
}

// statusError translates a failed filesystem-level status into the error
// taxonomy. Every facade method funnels remote failures through here.
func statusError(path string, st Status) error {
	switch st.Errno {
	case ErrnoInvalidRequest, ErrnoPosixExists, ErrnoItExists:
		return &DestinationExistsError{Path: path, Status: st}
	case ErrnoFSError:
		// The errno alone cannot distinguish a non-empty directory from a
		// resource that is not a directory at all; only the message can.
		if strings.HasSuffix(strings.TrimSpace(st.Message), "not a directory") {
			return &ResourceInvalidError{Path: path, Status: st}
		}
		return &DirectoryNotEmptyError{Path: path, Status: st}
	case ErrnoNotFound:
		return &NotFoundError{Path: path, Status: st}
	default:
		return &ResourceError{Path: path, Status: st}
	}
}

// fileStatusError translates a failed file-level status, tagging it with
// the operation that detected it.
func fileStatusError(path, op string, st Status) error {
	if st.Errno == ErrnoNotFound {
		return &NotFoundError{Path: path, Status: st}
	}
	return &ResourceError{Path: path, Op: op, Status: st}
}
