// Package xrdtest provides an in-memory XRootD endpoint for tests. It
// implements the client interfaces with the same status codes and error
// messages a real server produces, including the NUL-padded query
// responses.
package xrdtest

import (
	"fmt"
	"hash/adler32"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jacoelho/xrootdfs"
)

var _ xrootdfs.Client = (*Server)(nil)

// Server is an in-memory hierarchical store speaking the client
// interfaces. The zero value is not usable; use NewServer.
//
// It is safe for concurrent use.
type Server struct {
	mu   sync.Mutex
	root *node

	// ChecksumUnsupported makes checksum queries fail the way servers
	// without a checksum plugin do.
	ChecksumUnsupported bool

	// Unreachable makes every ping fail.
	Unreachable bool
}

type node struct {
	dir      bool
	data     []byte
	children map[string]*node
	ctime    time.Time
	mtime    time.Time
	atime    time.Time
}

func newDirNode() *node {
	now := time.Now()
	return &node{dir: true, children: map[string]*node{}, ctime: now, mtime: now, atime: now}
}

func newFileNode() *node {
	now := time.Now()
	return &node{ctime: now, mtime: now, atime: now}
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{root: newDirNode()}
}

// WriteFile creates a file with the given contents, creating missing
// parent directories. Meant for test fixture setup.
func (s *Server) WriteFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := segments(p)
	dir := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := dir.children[seg]
		if !ok {
			child = newDirNode()
			dir.children[seg] = child
		}
		dir = child
	}
	n := newFileNode()
	n.data = append([]byte(nil), data...)
	dir.children[segs[len(segs)-1]] = n
}

// MkdirAll creates a directory and its parents. Meant for test fixture
// setup.
func (s *Server) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(segments(p))
}

func (s *Server) mkdirAll(segs []string) *node {
	dir := s.root
	for _, seg := range segs {
		child, ok := dir.children[seg]
		if !ok {
			child = newDirNode()
			dir.children[seg] = child
		}
		dir = child
	}
	return dir
}

func segments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func (s *Server) lookup(segs []string) (*node, bool) {
	n := s.root
	for _, seg := range segs {
		if !n.dir {
			return nil, false
		}
		child, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

func (s *Server) lookupParent(segs []string) (*node, string, bool) {
	if len(segs) == 0 {
		return nil, "", false
	}
	parent, ok := s.lookup(segs[:len(segs)-1])
	if !ok || !parent.dir {
		return nil, "", false
	}
	return parent, segs[len(segs)-1], true
}

func ok() xrootdfs.Status { return xrootdfs.Status{} }

func fail(errno int, msg string) xrootdfs.Status {
	return xrootdfs.Status{Code: 1, Errno: errno, Message: msg}
}

func notFound(p string) xrootdfs.Status {
	return fail(xrootdfs.ErrnoNotFound, fmt.Sprintf("[ERROR] Query response negative: no such file or directory: %s", p))
}

func statInfo(n *node) xrootdfs.StatInfo {
	flags := xrootdfs.StatFlagsIsReadable | xrootdfs.StatFlagsIsWritable
	if n.dir {
		flags |= xrootdfs.StatFlagsIsDir
	}
	return xrootdfs.StatInfo{
		Size:    int64(len(n.data)),
		Flags:   flags,
		ModTime: n.mtime,
	}
}

func (s *Server) Open(p string, flags xrootdfs.OpenFlags) (xrootdfs.FileClient, xrootdfs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := segments(p)
	if len(segs) == 0 {
		return nil, fail(xrootdfs.ErrnoFSError, "is a directory")
	}
	if flags&xrootdfs.OpenFlagsMkPath != 0 {
		s.mkdirAll(segs[:len(segs)-1])
	}

	parent, name, found := s.lookupParent(segs)
	if !found {
		return nil, notFound(p)
	}

	n, exists := parent.children[name]
	if exists && n.dir {
		return nil, fail(xrootdfs.ErrnoFSError, "is a directory")
	}

	switch {
	case flags&xrootdfs.OpenFlagsDelete != 0:
		n = newFileNode()
		parent.children[name] = n
	case flags&xrootdfs.OpenFlagsUpdate != 0, flags&xrootdfs.OpenFlagsRead != 0:
		if !exists {
			return nil, notFound(p)
		}
	default:
		if !exists {
			return nil, notFound(p)
		}
	}

	return &ServerFile{server: s, node: n, open: true}, ok()
}

func (s *Server) Stat(p string) (xrootdfs.StatInfo, xrootdfs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, found := s.lookup(segments(p))
	if !found {
		return xrootdfs.StatInfo{}, notFound(p)
	}
	return statInfo(n), ok()
}

func (s *Server) Dirlist(p string, flags xrootdfs.DirListFlags) ([]xrootdfs.DirEntry, xrootdfs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, found := s.lookup(segments(p))
	if !found {
		return nil, notFound(p)
	}
	if !n.dir {
		return nil, fail(xrootdfs.ErrnoFSError, "not a directory")
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]xrootdfs.DirEntry, 0, len(names))
	for _, name := range names {
		entry := xrootdfs.DirEntry{Name: name}
		if flags&xrootdfs.DirListFlagsStat != 0 {
			info := statInfo(n.children[name])
			entry.Stat = &info
		}
		entries = append(entries, entry)
	}
	return entries, ok()
}

func (s *Server) Mkdir(p string, flags xrootdfs.MkDirFlags, _ xrootdfs.AccessMode) xrootdfs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	segs := segments(p)
	if len(segs) == 0 {
		return fail(xrootdfs.ErrnoItExists, "file exists")
	}
	if flags&xrootdfs.MkDirFlagsMakePath != 0 {
		s.mkdirAll(segs[:len(segs)-1])
	}

	parent, name, found := s.lookupParent(segs)
	if !found {
		return notFound(p)
	}
	if _, exists := parent.children[name]; exists {
		return fail(xrootdfs.ErrnoItExists, "file exists")
	}
	parent.children[name] = newDirNode()
	return ok()
}

func (s *Server) Rm(p string) xrootdfs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, found := s.lookupParent(segments(p))
	if !found {
		return notFound(p)
	}
	n, exists := parent.children[name]
	if !exists {
		return notFound(p)
	}
	if n.dir && len(n.children) > 0 {
		return fail(xrootdfs.ErrnoFSError, "directory not empty")
	}
	delete(parent.children, name)
	return ok()
}

func (s *Server) RmDir(p string) xrootdfs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, found := s.lookupParent(segments(p))
	if !found {
		return notFound(p)
	}
	n, exists := parent.children[name]
	if !exists {
		return notFound(p)
	}
	if !n.dir {
		return fail(xrootdfs.ErrnoFSError, "not a directory")
	}
	if len(n.children) > 0 {
		return fail(xrootdfs.ErrnoFSError, "directory not empty")
	}
	delete(parent.children, name)
	return ok()
}

func (s *Server) Mv(src, dst string) xrootdfs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcParent, srcName, found := s.lookupParent(segments(src))
	if !found {
		return notFound(src)
	}
	n, exists := srcParent.children[srcName]
	if !exists {
		return notFound(src)
	}

	// Missing intermediate directories on the destination side are
	// created, matching server behavior.
	dstSegs := segments(dst)
	if len(dstSegs) == 0 {
		return fail(xrootdfs.ErrnoItExists, "file exists")
	}
	dstParent := s.mkdirAll(dstSegs[:len(dstSegs)-1])
	dstName := dstSegs[len(dstSegs)-1]
	if _, exists := dstParent.children[dstName]; exists {
		return fail(xrootdfs.ErrnoItExists, "file exists")
	}

	delete(srcParent.children, srcName)
	dstParent.children[dstName] = n
	return ok()
}

func (s *Server) Copy(src, dst string, force bool) xrootdfs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, found := s.lookup(segments(src))
	if !found {
		return notFound(src)
	}
	if n.dir {
		return fail(xrootdfs.ErrnoFSError, "is a directory")
	}

	dstParent, dstName, foundDst := s.lookupParent(segments(dst))
	if !foundDst {
		return notFound(dst)
	}
	if _, exists := dstParent.children[dstName]; exists && !force {
		return fail(xrootdfs.ErrnoItExists, "file exists")
	}
	cp := newFileNode()
	cp.data = append([]byte(nil), n.data...)
	dstParent.children[dstName] = cp
	return ok()
}

func (s *Server) Query(code xrootdfs.QueryCode, arg string) ([]byte, xrootdfs.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch code {
	case xrootdfs.QueryCodeChecksum:
		if s.ChecksumUnsupported {
			return nil, fail(xrootdfs.ErrnoNotSupported, "query checksum is not supported")
		}
		n, found := s.lookup(segments(arg))
		if !found {
			return nil, notFound(arg)
		}
		if n.dir {
			return nil, fail(xrootdfs.ErrnoFSError, "is a directory")
		}
		sum := adler32.Checksum(n.data)
		return []byte(fmt.Sprintf("adler32 %08x\x00", sum)), ok()

	case xrootdfs.QueryCodeXAttr:
		n, found := s.lookup(segments(arg))
		if !found {
			return nil, notFound(arg)
		}
		typ := "f"
		if n.dir {
			typ = "d"
		}
		values := url.Values{}
		values.Set("oss.cgroup", "public")
		values.Set("oss.type", typ)
		values.Set("oss.used", strconv.Itoa(len(n.data)))
		values.Set("oss.ct", strconv.FormatInt(n.ctime.Unix(), 10))
		values.Set("oss.mt", strconv.FormatInt(n.mtime.Unix(), 10))
		values.Set("oss.at", strconv.FormatInt(n.atime.Unix(), 10))
		return []byte(values.Encode() + "\x00"), ok()
	}

	return nil, fail(xrootdfs.ErrnoNotSupported, fmt.Sprintf("query code %d is not supported", code))
}

func (s *Server) Ping() xrootdfs.Status {
	if s.Unreachable {
		return fail(xrootdfs.ErrnoIOError, "connection refused")
	}
	return ok()
}

var _ xrootdfs.FileClient = (*ServerFile)(nil)

// ServerFile is an open handle on a server file.
type ServerFile struct {
	server *Server
	node   *node
	open   bool
}

func (f *ServerFile) ReadAt(p []byte, off int64) (int, xrootdfs.Status) {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()

	if !f.open {
		return 0, fail(xrootdfs.ErrnoInvalidRequest, "file is not open")
	}
	f.node.atime = time.Now()
	if off >= int64(len(f.node.data)) {
		return 0, ok()
	}
	return copy(p, f.node.data[off:]), ok()
}

func (f *ServerFile) WriteAt(p []byte, off int64) (int, xrootdfs.Status) {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()

	if !f.open {
		return 0, fail(xrootdfs.ErrnoInvalidRequest, "file is not open")
	}
	end := off + int64(len(p))
	if grow := end - int64(len(f.node.data)); grow > 0 {
		f.node.data = append(f.node.data, make([]byte, grow)...)
	}
	copy(f.node.data[off:], p)
	f.node.mtime = time.Now()
	return len(p), ok()
}

func (f *ServerFile) Stat() (xrootdfs.StatInfo, xrootdfs.Status) {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()

	if !f.open {
		return xrootdfs.StatInfo{}, fail(xrootdfs.ErrnoInvalidRequest, "file is not open")
	}
	return statInfo(f.node), ok()
}

func (f *ServerFile) Truncate(size int64) xrootdfs.Status {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()

	if !f.open {
		return fail(xrootdfs.ErrnoInvalidRequest, "file is not open")
	}
	if size < 0 {
		return fail(xrootdfs.ErrnoInvalidRequest, "negative size")
	}
	if size <= int64(len(f.node.data)) {
		f.node.data = f.node.data[:size]
	} else {
		f.node.data = append(f.node.data, make([]byte, size-int64(len(f.node.data)))...)
	}
	f.node.mtime = time.Now()
	return ok()
}

func (f *ServerFile) Sync() xrootdfs.Status {
	if !f.open {
		return fail(xrootdfs.ErrnoInvalidRequest, "file is not open")
	}
	return ok()
}

func (f *ServerFile) Close() xrootdfs.Status {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	f.open = false
	return ok()
}

func (f *ServerFile) IsOpen() bool { return f.open }
