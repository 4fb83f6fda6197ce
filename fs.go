package xrootdfs

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"path"
	"strings"
)

// FS exposes a remote XRootD storage endpoint through familiar
// filesystem operations. All paths are interpreted relative to the base
// path carried by the URL the FS was created with; absolute paths that
// already include the base path are accepted as-is.
//
// Query arguments (e.g. Kerberos or GSI authentication tokens) can be
// supplied either in the URL or with WithQuery, but the same key may not
// come from both.
type FS struct {
	client   Client
	rootURL  string
	basePath string
	query    map[string]string
}

// Option configures an FS.
type Option func(*fsOptions)

type fsOptions struct {
	query map[string]string
}

// WithQuery appends key/values to the URL query string sent to the
// server on every operation.
func WithQuery(query map[string]string) Option {
	return func(o *fsOptions) { o.query = query }
}

// New creates a filesystem rooted at the given root URL.
func New(rawurl string, client Client, opts ...Option) (*FS, error) {
	if !IsValidURL(rawurl) {
		return nil, &PathError{URL: rawurl}
	}

	rootURL, basePath, rawquery, err := SplitURL(rawurl)
	if err != nil {
		return nil, err
	}
	if !IsValidPath(basePath) {
		return nil, &InvalidPathError{Path: basePath}
	}

	var options fsOptions
	for _, opt := range opts {
		opt(&options)
	}

	query := make(map[string]string)
	if rawquery != "" {
		values, err := url.ParseQuery(rawquery)
		if err != nil {
			return nil, fmt.Errorf("parsing query string of %s: %w", rawurl, err)
		}
		for k, v := range values {
			query[k] = v[0]
		}
	}
	for k, v := range options.query {
		if _, ok := query[k]; ok {
			return nil, fmt.Errorf("query field %q conflicts with field in URL %s", k, rawurl)
		}
		query[k] = v
	}

	return &FS{
		client:   client,
		rootURL:  rootURL,
		basePath: basePath,
		query:    query,
	}, nil
}

// RootURL returns the root URL of the filesystem, including any query
// arguments.
func (x *FS) RootURL() string {
	if len(x.query) > 0 {
		return x.rootURL + "/?" + x.encodeQuery()
	}
	return x.rootURL
}

// BasePath returns the base path all relative paths resolve against.
func (x *FS) BasePath() string { return x.basePath }

// QueryArgs returns a copy of the query arguments sent with every
// operation.
func (x *FS) QueryArgs() map[string]string {
	if len(x.query) == 0 {
		return nil
	}
	out := make(map[string]string, len(x.query))
	for k, v := range x.query {
		out[k] = v
	}
	return out
}

func (x *FS) encodeQuery() string {
	values := make(url.Values, len(x.query))
	for k, v := range x.query {
		values.Set(k, v)
	}
	return values.Encode()
}

// PathURL returns the full URL for a path, with the query string
// appended when withQuery is set.
func (x *FS) PathURL(p string, withQuery bool) (string, error) {
	resolved, err := x.resolve(p)
	if err != nil {
		return "", err
	}
	if withQuery && len(x.query) > 0 {
		return x.rootURL + resolved + "?" + x.encodeQuery(), nil
	}
	return x.rootURL + resolved, nil
}

// resolve normalizes a path and prepends the base path. Absolute paths
// that already start with the base path are kept; other absolute paths
// are treated as relative to it. A ".." escaping the filesystem root is
// an error.
func (x *FS) resolve(p string) (string, error) {
	base := splitSegments(x.basePath)
	trimmed := strings.TrimLeft(p, "/")

	var segs []string
	if !strings.HasPrefix(p, "/") || !segmentsHavePrefix(splitSegments(trimmed), base) {
		segs = append(segs, base...)
	}

	for _, s := range strings.Split(trimmed, "/") {
		switch s {
		case "", ".":
		case "..":
			if len(segs) == 0 {
				return "", &BackReferenceError{Path: p}
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, s)
		}
	}
	return "//" + strings.Join(segs, "/"), nil
}

func splitSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}
	return segs
}

func segmentsHavePrefix(segs, prefix []string) bool {
	if len(segs) < len(prefix) {
		return false
	}
	for i, s := range prefix {
		if segs[i] != s {
			return false
		}
	}
	return true
}

// Open opens a file on the remote filesystem.
func (x *FS) Open(p, mode string, opts ...FileOption) (*File, error) {
	fileURL, err := x.PathURL(p, true)
	if err != nil {
		return nil, err
	}
	return OpenFile(x.client, fileURL, mode, opts...)
}

func (x *FS) statFlags(p string) (StatFlags, error) {
	resolved, err := x.resolve(p)
	if err != nil {
		return 0, err
	}
	info, st := x.client.Stat(resolved)
	if !st.IsOK() {
		return 0, statusError(p, st)
	}
	return info.Flags, nil
}

// IsDir reports whether a path references a directory. A missing path is
// not an error; it is simply not a directory.
func (x *FS) IsDir(p string) (bool, error) {
	flags, err := x.statFlags(p)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			return false, nil
		}
		return false, err
	}
	return flags&StatFlagsIsDir != 0, nil
}

// IsFile reports whether a path references a regular file.
func (x *FS) IsFile(p string) (bool, error) {
	flags, err := x.statFlags(p)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			return false, nil
		}
		return false, err
	}
	return flags&(StatFlagsIsDir|StatFlagsOther) == 0, nil
}

// Exists reports whether a path references any resource.
func (x *FS) Exists(p string) (bool, error) {
	resolved, err := x.resolve(p)
	if err != nil {
		return false, err
	}
	_, st := x.client.Stat(resolved)
	return st.IsOK(), nil
}

type listConfig struct {
	wildcard  string
	dirsOnly  bool
	filesOnly bool
	full      bool
	absolute  bool
}

// ListOption configures directory listing.
type ListOption func(*listConfig)

// Wildcard keeps only names matching a shell pattern.
func Wildcard(pattern string) ListOption {
	return func(c *listConfig) { c.wildcard = pattern }
}

// DirsOnly keeps only directories.
func DirsOnly() ListOption { return func(c *listConfig) { c.dirsOnly = true } }

// FilesOnly keeps only regular files.
func FilesOnly() ListOption { return func(c *listConfig) { c.filesOnly = true } }

// FullPaths returns entries as paths relative to the base path.
func FullPaths() ListOption { return func(c *listConfig) { c.full = true } }

// AbsolutePaths returns entries as absolute paths. FullPaths wins when
// both are set.
func AbsolutePaths() ListOption { return func(c *listConfig) { c.absolute = true } }

// Listdir lists the entries of a directory.
func (x *FS) Listdir(p string, opts ...ListOption) ([]string, error) {
	var cfg listConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dirsOnly && cfg.filesOnly {
		return nil, fmt.Errorf("dirs-only and files-only cannot both be set")
	}

	resolved, err := x.resolve(p)
	if err != nil {
		return nil, err
	}

	flags := DirListFlagsNone
	if cfg.dirsOnly || cfg.filesOnly {
		flags = DirListFlagsStat
	}

	entries, st := x.client.Dirlist(resolved, flags)
	if !st.IsOK() {
		return nil, statusError(p, st)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if cfg.wildcard != "" {
			ok, err := path.Match(cfg.wildcard, e.Name)
			if err != nil {
				return nil, fmt.Errorf("wildcard %q: %w", cfg.wildcard, err)
			}
			if !ok {
				continue
			}
		}
		if cfg.dirsOnly || cfg.filesOnly {
			entryFlags, err := x.entryFlags(resolved, e)
			if err != nil {
				return nil, err
			}
			isDir := entryFlags&StatFlagsIsDir != 0
			isFile := entryFlags&(StatFlagsIsDir|StatFlagsOther) == 0
			if cfg.dirsOnly && !isDir {
				continue
			}
			if cfg.filesOnly && !isFile {
				continue
			}
		}

		switch {
		case cfg.full:
			names = append(names, path.Join(path.Clean(p), e.Name))
		case cfg.absolute:
			names = append(names, path.Join("/"+strings.TrimLeft(resolved, "/"), e.Name))
		default:
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// IListdir returns an iterator over directory entries, shaped by the same
// options as Listdir. A failure is yielded once, as an empty name with a
// non-nil error. The listing request is issued when iteration starts.
func (x *FS) IListdir(p string, opts ...ListOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		names, err := x.Listdir(p, opts...)
		if err != nil {
			yield("", err)
			return
		}
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

func (x *FS) entryFlags(dir string, e DirEntry) (StatFlags, error) {
	if e.Stat != nil {
		return e.Stat.Flags, nil
	}
	info, st := x.client.Stat(dir + "/" + e.Name)
	if !st.IsOK() {
		return 0, statusError(e.Name, st)
	}
	return info.Flags, nil
}

// MakeDir creates a directory. With recursive set, missing intermediate
// directories are created as well. With allowRecreate set, creating a
// directory that already exists is not an error.
func (x *FS) MakeDir(p string, recursive, allowRecreate bool) error {
	resolved, err := x.resolve(p)
	if err != nil {
		return err
	}

	flags := MkDirFlagsNone
	if recursive {
		flags = MkDirFlagsMakePath
	}

	st := x.client.Mkdir(resolved, flags, AccessModeNone)
	if st.IsOK() {
		return nil
	}
	err = statusError(p, st)
	if allowRecreate {
		if _, ok := err.(*DestinationExistsError); ok {
			return nil
		}
	}
	return err
}

// Remove removes a file from the filesystem.
func (x *FS) Remove(p string) error {
	resolved, err := x.resolve(p)
	if err != nil {
		return err
	}
	if st := x.client.Rm(resolved); !st.IsOK() {
		return statusError(p, st)
	}
	return nil
}

// RemoveDir removes a directory. With force set, the directory contents
// are removed first; the protocol has no recursive delete, so this walks
// the tree and issues one request per entry.
func (x *FS) RemoveDir(p string, force bool) error {
	resolved, err := x.resolve(p)
	if err != nil {
		return err
	}

	st := x.client.RmDir(resolved)
	if st.IsOK() {
		return nil
	}
	if st.Errno == ErrnoFSError && force {
		err := statusError(p, st)
		if _, notEmpty := err.(*DirectoryNotEmptyError); notEmpty {
			return x.removeTree(p, resolved)
		}
		return err
	}
	return statusError(p, st)
}

// removeTree removes a directory depth-first.
func (x *FS) removeTree(p, resolved string) error {
	entries, st := x.client.Dirlist(resolved, DirListFlagsStat)
	if !st.IsOK() {
		return statusError(p, st)
	}
	for _, e := range entries {
		child := resolved + "/" + e.Name
		flags, err := x.entryFlags(resolved, e)
		if err != nil {
			return err
		}
		if flags&StatFlagsIsDir != 0 {
			if err := x.removeTree(p+"/"+e.Name, child); err != nil {
				return err
			}
			continue
		}
		if st := x.client.Rm(child); !st.IsOK() {
			return statusError(p+"/"+e.Name, st)
		}
	}
	if st := x.client.RmDir(resolved); !st.IsOK() {
		return statusError(p, st)
	}
	return nil
}

// Rename renames a file or directory in place. The new name is taken
// relative to the directory containing src.
func (x *FS) Rename(src, newname string) error {
	resolvedSrc, err := x.resolve(src)
	if err != nil {
		return err
	}
	resolvedDst, err := x.resolve(path.Join(path.Dir(resolvedSrc[1:]), newname))
	if err != nil {
		return err
	}
	if ok, err := x.existsResolved(resolvedSrc); err != nil {
		return err
	} else if !ok {
		return &NotFoundError{Path: src}
	}
	return x.moveResolved(resolvedSrc, resolvedDst, false)
}

// Move moves a file from one location to another.
func (x *FS) Move(src, dst string, overwrite bool) error {
	return x.moveByType(src, dst, overwrite, false)
}

// MoveDir moves a directory from one location to another.
func (x *FS) MoveDir(src, dst string, overwrite bool) error {
	return x.moveByType(src, dst, overwrite, true)
}

func (x *FS) moveByType(src, dst string, overwrite, wantDir bool) error {
	resolvedSrc, err := x.resolve(src)
	if err != nil {
		return err
	}
	resolvedDst, err := x.resolve(dst)
	if err != nil {
		return err
	}

	if ok, err := x.existsResolved(resolvedSrc); err != nil {
		return err
	} else if !ok {
		return &NotFoundError{Path: src}
	}

	flags, err := x.flagsResolved(resolvedSrc, src)
	if err != nil {
		return err
	}
	isDir := flags&StatFlagsIsDir != 0
	if wantDir && !isDir {
		return &ResourceInvalidError{Path: src, Msg: "source is not a directory"}
	}
	if !wantDir && (isDir || flags&StatFlagsOther != 0) {
		return &ResourceInvalidError{Path: src, Msg: "source is not a file"}
	}

	return x.moveResolved(resolvedSrc, resolvedDst, overwrite)
}

// moveResolved moves src to dst, removing an existing destination first
// when overwriting. Both paths must already be resolved.
func (x *FS) moveResolved(src, dst string, overwrite bool) error {
	if ok, err := x.existsResolved(dst); err != nil {
		return err
	} else if ok {
		if !overwrite {
			return &DestinationExistsError{Path: dst}
		}
		if err := x.removeResolved(dst); err != nil {
			return err
		}
	}
	if st := x.client.Mv(src, dst); !st.IsOK() {
		return statusError(dst, st)
	}
	return nil
}

func (x *FS) existsResolved(resolved string) (bool, error) {
	_, st := x.client.Stat(resolved)
	return st.IsOK(), nil
}

func (x *FS) flagsResolved(resolved, p string) (StatFlags, error) {
	info, st := x.client.Stat(resolved)
	if !st.IsOK() {
		return 0, statusError(p, st)
	}
	return info.Flags, nil
}

// removeResolved removes an existing resource, file or directory.
func (x *FS) removeResolved(resolved string) error {
	flags, err := x.flagsResolved(resolved, resolved)
	if err != nil {
		return err
	}
	if flags&StatFlagsIsDir != 0 {
		return x.removeTree(resolved, resolved)
	}
	if st := x.client.Rm(resolved); !st.IsOK() {
		return statusError(resolved, st)
	}
	return nil
}

// Copy copies a file from source to destination. With overwrite set an
// existing destination is replaced; an existing destination directory is
// removed first.
func (x *FS) Copy(src, dst string, overwrite bool) error {
	resolvedSrc, err := x.resolve(src)
	if err != nil {
		return err
	}
	resolvedDst, err := x.resolve(dst)
	if err != nil {
		return err
	}

	if ok, err := x.IsFile(src); err != nil {
		return err
	} else if !ok {
		if isDir, err := x.IsDir(src); err != nil {
			return err
		} else if isDir {
			return &ResourceInvalidError{Path: src, Msg: "source is not a file"}
		}
		return &NotFoundError{Path: src}
	}

	if overwrite {
		if isDir, err := x.IsDir(dst); err != nil {
			return err
		} else if isDir {
			if err := x.removeTree(dst, resolvedDst); err != nil {
				return err
			}
		}
	}

	if st := x.client.Copy(resolvedSrc, resolvedDst, overwrite); !st.IsOK() {
		return statusError(dst, st)
	}
	return nil
}

// CopyDir copies a directory tree from source to destination. The
// directory structure is recreated at the destination first, then files
// are copied, in parallel unless parallel is false.
func (x *FS) CopyDir(src, dst string, overwrite, parallel bool) error {
	if ok, err := x.IsDir(src); err != nil {
		return err
	} else if !ok {
		if isFile, err := x.IsFile(src); err != nil {
			return err
		} else if isFile {
			return &ResourceInvalidError{Path: src, Msg: "source is not a directory"}
		}
		return &NotFoundError{Path: src}
	}

	if ok, err := x.Exists(dst); err != nil {
		return err
	} else if ok {
		if !overwrite {
			return &DestinationExistsError{Path: dst}
		}
		if err := x.removeExisting(dst); err != nil {
			return err
		}
	}

	if err := x.MakeDir(dst, true, true); err != nil {
		return err
	}

	process := NewCopyProcess(x.client)
	if err := x.copyTree(src, dst, overwrite, parallel, process); err != nil {
		return err
	}
	if parallel {
		return process.Run()
	}
	return nil
}

func (x *FS) copyTree(src, dst string, overwrite, parallel bool, process *CopyProcess) error {
	entries, err := x.Listdir(src)
	if err != nil {
		return err
	}
	for _, name := range entries {
		srcChild := path.Join(path.Clean(src), name)
		dstChild := path.Join(path.Clean(dst), name)
		isDir, err := x.IsDir(srcChild)
		if err != nil {
			return err
		}
		if isDir {
			if err := x.MakeDir(dstChild, true, true); err != nil {
				return err
			}
			if err := x.copyTree(srcChild, dstChild, overwrite, parallel, process); err != nil {
				return err
			}
			continue
		}
		if parallel {
			resolvedSrc, err := x.resolve(srcChild)
			if err != nil {
				return err
			}
			resolvedDst, err := x.resolve(dstChild)
			if err != nil {
				return err
			}
			process.Add(resolvedSrc, resolvedDst, overwrite)
			continue
		}
		if err := x.Copy(srcChild, dstChild, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (x *FS) removeExisting(p string) error {
	isDir, err := x.IsDir(p)
	if err != nil {
		return err
	}
	if isDir {
		return x.RemoveDir(p, true)
	}
	return x.Remove(p)
}

// GetInfo returns metadata for a path, combining the stat response with
// the server's extended attributes.
func (x *FS) GetInfo(p string) (*Info, error) {
	resolved, err := x.resolve(p)
	if err != nil {
		return nil, err
	}

	info, st := x.client.Stat(resolved)
	if !st.IsOK() {
		return nil, statusError(p, st)
	}

	xattr, err := x.queryXAttr(resolved)
	if err != nil {
		return nil, err
	}

	return newInfo(path.Base(strings.TrimRight(p, "/")), info, xattr), nil
}

// Checksum asks the server for a file's checksum. Not all servers
// support the operation.
func (x *FS) Checksum(p string) (algorithm, value string, err error) {
	if ok, err := x.IsFile(p); err != nil {
		return "", "", err
	} else if !ok {
		return "", "", &ResourceInvalidError{Path: p, Msg: "path is not a file"}
	}

	resolved, err := x.resolve(p)
	if err != nil {
		return "", "", err
	}
	raw, err := x.queryRaw(QueryCodeChecksum, resolved)
	if err != nil {
		return "", "", err
	}

	fields := strings.Fields(strings.TrimRight(string(raw), "\x00"))
	if len(fields) != 2 {
		return "", "", &ResourceError{Path: p, Op: "checksumming", Msg: fmt.Sprintf("malformed checksum response %q", raw)}
	}
	return fields[0], fields[1], nil
}

// Ping checks the connection to the server.
func (x *FS) Ping() error {
	if st := x.client.Ping(); !st.IsOK() {
		return &RemoteConnectionError{Status: st}
	}
	return nil
}

func (x *FS) queryRaw(code QueryCode, arg string) ([]byte, error) {
	res, st := x.client.Query(code, arg)
	if !st.IsOK() {
		if st.Errno == ErrnoNotSupported {
			return nil, &UnsupportedError{Status: st}
		}
		return nil, &ResourceError{Path: arg, Op: "querying", Status: st}
	}
	return trimQueryResponse(res), nil
}

func (x *FS) queryXAttr(arg string) (url.Values, error) {
	raw, err := x.queryRaw(QueryCodeXAttr, arg)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing extended attributes of %s: %w", arg, err)
	}
	return values, nil
}

// trimQueryResponse drops the garbage bytes some servers append after a
// NUL terminator because of how the response buffer is allocated.
func trimQueryResponse(res []byte) []byte {
	lo := len(res) - 3
	if lo < 0 {
		lo = 0
	}
	hi := len(res) - 1
	if hi < lo {
		hi = lo
	}
	if bytes.IndexByte(res[lo:hi], 0) >= 0 {
		if i := bytes.IndexByte(res, 0); i >= 0 {
			res = res[:i]
		}
	}
	return res
}
