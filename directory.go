package xrootdfs

import (
	"io/fs"
)

var (
	_ fs.File     = (*Directory)(nil)
	_ fs.DirEntry = (*Directory)(nil)
)

// Directory is the fs.File returned when an IOFS open resolves to a
// remote directory. It carries metadata only; reading it is invalid.
type Directory struct {
	info *Info
}

func (d *Directory) Name() string               { return d.info.Name() }
func (d *Directory) IsDir() bool                { return true }
func (d *Directory) Type() fs.FileMode          { return d.info.Mode().Type() }
func (d *Directory) Info() (fs.FileInfo, error) { return d.info, nil }
func (d *Directory) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *Directory) Close() error               { return nil }

func (d *Directory) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.Name(), Err: fs.ErrInvalid}
}
