package xrootdfs_test

import (
	"fmt"
	"hash/adler32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/xrootdfs"
	"github.com/jacoelho/xrootdfs/xrdtest"
)

func newFS(t *testing.T) (*xrootdfs.FS, *xrdtest.Server) {
	t.Helper()
	srv := newServer(t)
	x, err := xrootdfs.New("root://localhost//tmp", srv)
	require.NoError(t, err)
	return x, srv
}

func TestNew(t *testing.T) {
	srv := xrdtest.NewServer()

	t.Run("invalid url", func(t *testing.T) {
		_, err := xrootdfs.New("http://localhost//tmp", srv)
		var pathErr *xrootdfs.PathError
		require.ErrorAs(t, err, &pathErr)
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := xrootdfs.New("root://localhost/tmp", srv)
		var invalidErr *xrootdfs.InvalidPathError
		require.ErrorAs(t, err, &invalidErr)
	})

	t.Run("query from url", func(t *testing.T) {
		x, err := xrootdfs.New("root://localhost//tmp?xrd.wantprot=krb5", srv)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"xrd.wantprot": "krb5"}, x.QueryArgs())
	})

	t.Run("query from option", func(t *testing.T) {
		x, err := xrootdfs.New("root://localhost//tmp", srv,
			xrootdfs.WithQuery(map[string]string{"xrd.wantprot": "krb5"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"xrd.wantprot": "krb5"}, x.QueryArgs())
	})

	t.Run("query merge", func(t *testing.T) {
		x, err := xrootdfs.New("root://localhost//tmp?a=1", srv,
			xrootdfs.WithQuery(map[string]string{"b": "2"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, x.QueryArgs())
	})

	t.Run("query conflict", func(t *testing.T) {
		_, err := xrootdfs.New("root://localhost//tmp?a=1", srv,
			xrootdfs.WithQuery(map[string]string{"a": "2"}))
		require.Error(t, err)
	})
}

func TestRootURL(t *testing.T) {
	srv := xrdtest.NewServer()

	x, err := xrootdfs.New("root://localhost//tmp", srv)
	require.NoError(t, err)
	assert.Equal(t, "root://localhost", x.RootURL())
	assert.Equal(t, "//tmp", x.BasePath())

	x, err = xrootdfs.New("root://localhost//tmp?xrd.wantprot=krb5", srv)
	require.NoError(t, err)
	assert.Equal(t, "root://localhost/?xrd.wantprot=krb5", x.RootURL())
}

func TestPathURL(t *testing.T) {
	srv := xrdtest.NewServer()
	x, err := xrootdfs.New("root://localhost//tmp?xrd.wantprot=krb5", srv)
	require.NoError(t, err)

	u, err := x.PathURL("data/testa.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "root://localhost//tmp/data/testa.txt", u)

	u, err = x.PathURL("data/testa.txt", true)
	require.NoError(t, err)
	assert.Equal(t, "root://localhost//tmp/data/testa.txt?xrd.wantprot=krb5", u)
}

func TestResolveBackReference(t *testing.T) {
	x, _ := newFS(t)

	// Inside the base path ".." is fine.
	entries, err := x.Listdir("data/afolder/../bfolder")
	require.NoError(t, err)
	assert.Equal(t, []string{"bfile.txt"}, entries)

	// Escaping the root is not.
	_, err = x.Listdir("../../..")
	var backRef *xrootdfs.BackReferenceError
	require.ErrorAs(t, err, &backRef)
}

func TestListdir(t *testing.T) {
	x, _ := newFS(t)

	t.Run("root", func(t *testing.T) {
		entries, err := x.Listdir("")
		require.NoError(t, err)
		assert.Equal(t, []string{"data"}, entries)

		entries, err = x.Listdir(".")
		require.NoError(t, err)
		assert.Equal(t, []string{"data"}, entries)
	})

	t.Run("plain", func(t *testing.T) {
		entries, err := x.Listdir("data")
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{"testa.txt", "testb.txt", "multiline.txt", "afolder", "bfolder"},
			entries)
	})

	t.Run("full", func(t *testing.T) {
		entries, err := x.Listdir("data/afolder", xrootdfs.FullPaths())
		require.NoError(t, err)
		assert.Contains(t, entries, "data/afolder/afile.txt")
	})

	t.Run("full normalizes", func(t *testing.T) {
		entries, err := x.Listdir("data/afolder/../bfolder", xrootdfs.FullPaths())
		require.NoError(t, err)
		assert.Contains(t, entries, "data/bfolder/bfile.txt")
	})

	t.Run("absolute", func(t *testing.T) {
		entries, err := x.Listdir("data/afolder", xrootdfs.AbsolutePaths())
		require.NoError(t, err)
		assert.Contains(t, entries, "/tmp/data/afolder/afile.txt")
	})

	t.Run("full wins over absolute", func(t *testing.T) {
		entries, err := x.Listdir("data/afolder", xrootdfs.AbsolutePaths(), xrootdfs.FullPaths())
		require.NoError(t, err)
		assert.Contains(t, entries, "data/afolder/afile.txt")
	})

	t.Run("wildcard", func(t *testing.T) {
		entries, err := x.Listdir("data", xrootdfs.Wildcard("*.txt"))
		require.NoError(t, err)
		assert.Contains(t, entries, "testa.txt")
		assert.NotContains(t, entries, "afolder")
	})

	t.Run("dirs only", func(t *testing.T) {
		entries, err := x.Listdir("data", xrootdfs.DirsOnly())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"afolder", "bfolder"}, entries)
	})

	t.Run("files only", func(t *testing.T) {
		entries, err := x.Listdir("data", xrootdfs.FilesOnly())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"testa.txt", "testb.txt", "multiline.txt"}, entries)
	})

	t.Run("dirs and files conflict", func(t *testing.T) {
		_, err := x.Listdir("data", xrootdfs.DirsOnly(), xrootdfs.FilesOnly())
		require.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := x.Listdir("nosuchdir")
		var notFound *xrootdfs.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("on file", func(t *testing.T) {
		_, err := x.Listdir("data/testa.txt")
		var invalid *xrootdfs.ResourceInvalidError
		require.ErrorAs(t, err, &invalid)
	})
}

func TestIListdir(t *testing.T) {
	x, _ := newFS(t)

	var names []string
	for name, err := range x.IListdir("data", xrootdfs.FilesOnly()) {
		require.NoError(t, err)
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"testa.txt", "testb.txt", "multiline.txt"}, names)

	for name, err := range x.IListdir("nosuchdir") {
		assert.Empty(t, name)
		var notFound *xrootdfs.NotFoundError
		require.ErrorAs(t, err, &notFound)
	}
}

func TestExistsIsFileIsDir(t *testing.T) {
	x, _ := newFS(t)

	ok, err := x.Exists("data/testa.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.Exists("data/nope.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = x.IsFile("data/testa.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.IsFile("data")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = x.IsDir("data")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.IsDir("data/testa.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	// Missing resources are simply neither.
	ok, err = x.IsFile("data/nope.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = x.IsDir("data/nope.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMakeDir(t *testing.T) {
	x, _ := newFS(t)

	ok, err := x.Exists("somedir")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, x.MakeDir("somedir", false, false))
	ok, err = x.Exists("somedir")
	require.NoError(t, err)
	assert.True(t, ok)

	// Existing directory.
	var exists *xrootdfs.DestinationExistsError
	err = x.MakeDir("data", false, false)
	require.ErrorAs(t, err, &exists)

	// Unless recreation is allowed.
	require.NoError(t, x.MakeDir("data", false, true))

	// Missing intermediate directory.
	var notFound *xrootdfs.NotFoundError
	err = x.MakeDir("aa/bb/cc", false, false)
	require.ErrorAs(t, err, &notFound)

	// Recursive creates the chain.
	require.NoError(t, x.MakeDir("aa/bb/cc", true, false))
	ok, err = x.IsDir("aa/bb/cc")
	require.NoError(t, err)
	assert.True(t, ok)

	// An existing file stays in the way.
	err = x.MakeDir("data/testa.txt", false, false)
	require.ErrorAs(t, err, &exists)
}

func TestRemove(t *testing.T) {
	x, _ := newFS(t)

	require.NoError(t, x.Remove("data/testa.txt"))
	ok, err := x.Exists("data/testa.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	var notFound *xrootdfs.NotFoundError
	err = x.Remove("a/testa.txt")
	require.ErrorAs(t, err, &notFound)

	var notEmpty *xrootdfs.DirectoryNotEmptyError
	err = x.Remove("data")
	require.ErrorAs(t, err, &notEmpty)

	// An empty directory can be removed.
	require.NoError(t, x.MakeDir("emptydir", false, false))
	require.NoError(t, x.Remove("emptydir"))
}

func TestRemoveDir(t *testing.T) {
	x, _ := newFS(t)

	var invalid *xrootdfs.ResourceInvalidError
	err := x.RemoveDir("data/testa.txt", false)
	require.ErrorAs(t, err, &invalid)

	var notFound *xrootdfs.NotFoundError
	err = x.RemoveDir("nosuchdir", false)
	require.ErrorAs(t, err, &notFound)

	var notEmpty *xrootdfs.DirectoryNotEmptyError
	err = x.RemoveDir("data", false)
	require.ErrorAs(t, err, &notEmpty)

	require.NoError(t, x.RemoveDir("data", true))
	ok, err := x.Exists("data")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRename(t *testing.T) {
	x, _ := newFS(t)

	var exists *xrootdfs.DestinationExistsError
	require.ErrorAs(t, x.Rename("data/testa.txt", "multiline.txt"), &exists)
	require.ErrorAs(t, x.Rename("data/afolder", "bfolder"), &exists)

	require.NoError(t, x.Rename("data/testa.txt", "testc.txt"))
	ok, err := x.Exists("data/testc.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = x.Exists("data/testa.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, x.Rename("data/afolder", "cfolder"))
	ok, err = x.IsDir("data/cfolder")
	require.NoError(t, err)
	assert.True(t, ok)

	// Renaming into a new nested name creates the intermediate dirs.
	require.NoError(t, x.Rename("data/cfolder", "a/b/c/test"))
	ok, err = x.IsDir("data/a/b/c/test")
	require.NoError(t, err)
	assert.True(t, ok)

	var notFound *xrootdfs.NotFoundError
	require.ErrorAs(t, x.Rename("data/gone.txt", "x.txt"), &notFound)
}

func TestMove(t *testing.T) {
	x, _ := newFS(t)

	content := readAll(t, x, "data/testa.txt")

	require.NoError(t, x.Move("data/testa.txt", "data/ok.txt", false))
	ok, err := x.Exists("data/testa.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, content, readAll(t, x, "data/ok.txt"))

	// Overwrite replaces an existing file.
	require.NoError(t, x.Move("data/ok.txt", "data/multiline.txt", true))
	assert.Equal(t, content, readAll(t, x, "data/multiline.txt"))

	// Overwrite can replace an existing directory too.
	require.NoError(t, x.Move("data/multiline.txt", "data/bfolder", true))
	isDir, err := x.IsDir("data/bfolder")
	require.NoError(t, err)
	assert.False(t, isDir)
	assert.Equal(t, content, readAll(t, x, "data/bfolder"))
}

func TestMoveBad(t *testing.T) {
	x, _ := newFS(t)

	var exists *xrootdfs.DestinationExistsError
	require.ErrorAs(t, x.Move("data/testa.txt", "data/multiline.txt", false), &exists)
	require.ErrorAs(t, x.Move("data/testa.txt", "data/testa.txt", false), &exists)
	require.ErrorAs(t, x.Move("data/testa.txt", "data/bfolder", false), &exists)

	var invalid *xrootdfs.ResourceInvalidError
	require.ErrorAs(t, x.Move("data/afolder", "data/new.txt", false), &invalid)

	var notFound *xrootdfs.NotFoundError
	require.ErrorAs(t, x.Move("data/gone.txt", "data/new.txt", false), &notFound)
}

func TestMoveDir(t *testing.T) {
	x, _ := newFS(t)

	require.NoError(t, x.MoveDir("data/afolder", "data/newfolder", false))
	ok, err := x.IsDir("data/newfolder")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = x.Exists("data/afolder")
	require.NoError(t, err)
	assert.False(t, ok)

	// Overwriting an existing directory replaces it and its contents.
	require.NoError(t, x.MoveDir("data/newfolder", "data/bfolder", true))
	entries, err := x.Listdir("data/bfolder")
	require.NoError(t, err)
	assert.Equal(t, []string{"afile.txt"}, entries)

	var invalid *xrootdfs.ResourceInvalidError
	require.ErrorAs(t, x.MoveDir("data/testa.txt", "data/elsewhere", false), &invalid)

	var notFound *xrootdfs.NotFoundError
	require.ErrorAs(t, x.MoveDir("data/gone", "data/elsewhere", false), &notFound)
}

func TestCopy(t *testing.T) {
	x, _ := newFS(t)

	content := readAll(t, x, "data/testa.txt")

	require.NoError(t, x.Copy("data/testa.txt", "data/copy.txt", false))
	assert.Equal(t, content, readAll(t, x, "data/copy.txt"))
	assert.Equal(t, content, readAll(t, x, "data/testa.txt"))

	var exists *xrootdfs.DestinationExistsError
	require.ErrorAs(t, x.Copy("data/testa.txt", "data/copy.txt", false), &exists)
	require.NoError(t, x.Copy("data/testa.txt", "data/copy.txt", true))

	var invalid *xrootdfs.ResourceInvalidError
	require.ErrorAs(t, x.Copy("data/afolder", "data/copy2", false), &invalid)

	var notFound *xrootdfs.NotFoundError
	require.ErrorAs(t, x.Copy("data/gone.txt", "data/copy3.txt", false), &notFound)
}

func TestCopyDir(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			x, _ := newFS(t)

			require.NoError(t, x.CopyDir("data", "backup", false, parallel))

			entries, err := x.Listdir("backup")
			require.NoError(t, err)
			assert.ElementsMatch(t,
				[]string{"testa.txt", "testb.txt", "multiline.txt", "afolder", "bfolder"},
				entries)
			assert.Equal(t, readAll(t, x, "data/afolder/afile.txt"), readAll(t, x, "backup/afolder/afile.txt"))

			var exists *xrootdfs.DestinationExistsError
			require.ErrorAs(t, x.CopyDir("data", "backup", false, parallel), &exists)
			require.NoError(t, x.CopyDir("data", "backup", true, parallel))

			var invalid *xrootdfs.ResourceInvalidError
			require.ErrorAs(t, x.CopyDir("data/testa.txt", "backup2", false, parallel), &invalid)
		})
	}
}

func TestGetInfo(t *testing.T) {
	x, _ := newFS(t)

	info, err := x.GetInfo("data/testa.txt")
	require.NoError(t, err)
	assert.Equal(t, "testa.txt", info.Name())
	assert.Equal(t, int64(len(testaContents)), info.Size())
	assert.False(t, info.IsDir())
	assert.True(t, info.Readable())
	assert.True(t, info.Writable())
	assert.False(t, info.Executable())
	assert.False(t, info.Offline())
	assert.False(t, info.ModTime().IsZero())
	assert.False(t, info.Created().IsZero())
	assert.False(t, info.Accessed().IsZero())

	info, err = x.GetInfo("data")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	var notFound *xrootdfs.NotFoundError
	_, err = x.GetInfo("data/gone.txt")
	require.ErrorAs(t, err, &notFound)
}

func TestChecksum(t *testing.T) {
	x, srv := newFS(t)

	algo, value, err := x.Checksum("data/testa.txt")
	require.NoError(t, err)
	assert.Equal(t, "adler32", algo)
	assert.Equal(t, fmt.Sprintf("%08x", adler32.Checksum([]byte(testaContents))), value)

	var invalid *xrootdfs.ResourceInvalidError
	_, _, err = x.Checksum("data")
	require.ErrorAs(t, err, &invalid)

	srv.ChecksumUnsupported = true
	var unsupported *xrootdfs.UnsupportedError
	_, _, err = x.Checksum("data/testa.txt")
	require.ErrorAs(t, err, &unsupported)
}

func TestPing(t *testing.T) {
	x, srv := newFS(t)

	require.NoError(t, x.Ping())

	srv.Unreachable = true
	var connErr *xrootdfs.RemoteConnectionError
	require.ErrorAs(t, x.Ping(), &connErr)
}

func TestOpenThroughFS(t *testing.T) {
	x, _ := newFS(t)

	f, err := x.Open("data/testa.txt", "r")
	require.NoError(t, err)
	defer f.Close()

	conts, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, testaContents, string(conts))
}

func readAll(t *testing.T, x *xrootdfs.FS, p string) string {
	t.Helper()
	f, err := x.Open(p, "r")
	require.NoError(t, err)
	defer f.Close()
	conts, err := f.ReadAll()
	require.NoError(t, err)
	return string(conts)
}
