package xrootdfs

import (
	"errors"
	"io/fs"
	"path"
	"sort"
)

var (
	_ fs.FS        = (*IOFS)(nil)
	_ fs.ReadDirFS = (*IOFS)(nil)
	_ fs.StatFS    = (*IOFS)(nil)
)

// IOFS adapts an FS to the standard library fs.FS interfaces, rooted at
// the base path. Files open read-only.
type IOFS struct {
	x *FS
}

// IOFS returns a read-only io/fs view of the filesystem.
func (x *FS) IOFS() *IOFS { return &IOFS{x: x} }

func (i *IOFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	info, err := i.stat("open", name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &Directory{info: info}, nil
	}

	f, err := i.x.Open(name, "r")
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &iofsFile{File: f, info: info}, nil
}

func (i *IOFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	resolved, err := i.x.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	entries, st := i.x.client.Dirlist(resolved, DirListFlagsStat)
	if !st.IsOK() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: mapNotExist(statusError(name, st))}
	}

	out := make([]fs.DirEntry, 0, len(entries))
	for _, e := range entries {
		stat := StatInfo{}
		if e.Stat != nil {
			stat = *e.Stat
		} else {
			var stErr error
			stat, stErr = i.statChild(resolved, e.Name)
			if stErr != nil {
				return nil, &fs.PathError{Op: "readdir", Path: path.Join(name, e.Name), Err: stErr}
			}
		}
		info := newInfo(e.Name, stat, nil)
		if info.IsDir() {
			out = append(out, &Directory{info: info})
		} else {
			out = append(out, &dirEntry{info: info})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name() < out[b].Name() })
	return out, nil
}

func (i *IOFS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	return i.stat("stat", name)
}

func (i *IOFS) stat(op, name string) (*Info, error) {
	resolved, err := i.x.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	stat, st := i.x.client.Stat(resolved)
	if !st.IsOK() {
		return nil, &fs.PathError{Op: op, Path: name, Err: mapNotExist(statusError(name, st))}
	}
	return newInfo(path.Base(name), stat, nil), nil
}

func (i *IOFS) statChild(resolvedDir, name string) (StatInfo, error) {
	stat, st := i.x.client.Stat(resolvedDir + "/" + name)
	if !st.IsOK() {
		return StatInfo{}, mapNotExist(statusError(name, st))
	}
	return stat, nil
}

func mapNotExist(err error) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return fs.ErrNotExist
	}
	return err
}

type iofsFile struct {
	*File
	info *Info
}

func (f *iofsFile) Stat() (fs.FileInfo, error) { return f.info, nil }

type dirEntry struct {
	info *Info
}

var _ fs.DirEntry = (*dirEntry)(nil)

func (d *dirEntry) Name() string               { return d.info.Name() }
func (d *dirEntry) IsDir() bool                { return false }
func (d *dirEntry) Type() fs.FileMode          { return d.info.Mode().Type() }
func (d *dirEntry) Info() (fs.FileInfo, error) { return d.info, nil }
