package xrootdfs

import (
	"io/fs"
	"net/url"
	"strconv"
	"time"
)

// Info describes a remote resource. It combines the stat response with
// the extended attributes the server keeps alongside it, and satisfies
// fs.FileInfo.
type Info struct {
	name     string
	size     int64
	flags    StatFlags
	modTime  time.Time
	created  time.Time
	accessed time.Time
	uid      string
	gid      string
}

var _ fs.FileInfo = (*Info)(nil)

func newInfo(name string, stat StatInfo, xattr url.Values) *Info {
	info := &Info{
		name:    name,
		size:    stat.Size,
		flags:   stat.Flags,
		modTime: stat.ModTime,
		uid:     xattr.Get("oss.u"),
		gid:     xattr.Get("oss.g"),
	}
	if t, ok := xattrTime(xattr, "oss.mt"); ok {
		info.modTime = t
	}
	if t, ok := xattrTime(xattr, "oss.ct"); ok {
		info.created = t
	}
	if t, ok := xattrTime(xattr, "oss.at"); ok {
		info.accessed = t
	}
	return info
}

func xattrTime(xattr url.Values, key string) (time.Time, bool) {
	v := xattr.Get(key)
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

func (i *Info) Name() string       { return i.name }
func (i *Info) Size() int64        { return i.size }
func (i *Info) ModTime() time.Time { return i.modTime }
func (i *Info) IsDir() bool        { return i.flags&StatFlagsIsDir != 0 }
func (i *Info) Sys() interface{}   { return nil }

func (i *Info) Mode() fs.FileMode {
	var mode fs.FileMode
	if i.IsDir() {
		mode |= fs.ModeDir
	}
	if i.flags&StatFlagsIsReadable != 0 {
		mode |= 0o444
	}
	if i.flags&StatFlagsIsWritable != 0 {
		mode |= 0o200
	}
	if i.flags&StatFlagsXBitSet != 0 {
		mode |= 0o111
	}
	return mode
}

// Created returns the creation time, or the zero time when the server
// did not report one.
func (i *Info) Created() time.Time { return i.created }

// Accessed returns the last access time, or the zero time when the
// server did not report one.
func (i *Info) Accessed() time.Time { return i.accessed }

// UID returns the owning user reported by the server, if any.
func (i *Info) UID() string { return i.uid }

// GID returns the owning group reported by the server, if any.
func (i *Info) GID() string { return i.gid }

// Offline reports whether the resource is offline (e.g. migrated to
// tape).
func (i *Info) Offline() bool { return i.flags&StatFlagsOffline != 0 }

// Readable reports whether the resource is readable by the connected
// identity.
func (i *Info) Readable() bool { return i.flags&StatFlagsIsReadable != 0 }

// Writable reports whether the resource is writable by the connected
// identity.
func (i *Info) Writable() bool { return i.flags&StatFlagsIsWritable != 0 }

// Executable reports whether the execute bit is set.
func (i *Info) Executable() bool { return i.flags&StatFlagsXBitSet != 0 }
