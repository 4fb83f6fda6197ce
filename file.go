package xrootdfs

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// defaultBufferSize is the chunk size used for line-oriented reads.
const defaultBufferSize = 64 * 1024

// maxChunk caps a single remote read request.
const maxChunk = int64(1) << 31

var (
	_ io.Reader = (*File)(nil)
	_ io.Writer = (*File)(nil)
	_ io.Seeker = (*File)(nil)
	_ io.Closer = (*File)(nil)
)

// File emulates a local seekable file over a remote XRootD file object.
//
// The remote side addresses every read and write by an explicit byte
// offset and keeps no cursor; File owns the cursor, the cached size and
// the read-ahead buffer used for line splitting. A File is intended for
// single-owner, single-goroutine use.
type File struct {
	client FileClient
	url    string
	mode   Mode

	pos       int64
	size      int64
	sizeKnown bool

	bufferSize int
	newline    []byte

	// Read-ahead left over from line splitting, valid only while
	// lineBufPos still equals the cursor.
	lineBuf    []byte
	lineBufPos int64

	stream *streamReader
}

type fileOptions struct {
	bufferSize    int
	newline       string
	newlineSet    bool
	lineBuffering bool
}

// FileOption configures a File at open time.
type FileOption func(*fileOptions)

// WithBufferSize overrides the chunk size used for line-oriented reads.
func WithBufferSize(n int) FileOption {
	return func(o *fileOptions) { o.bufferSize = n }
}

// WithNewline sets the newline sequence. Only "" (the protocol default)
// and "\n" are supported.
func WithNewline(s string) FileOption {
	return func(o *fileOptions) {
		o.newline = s
		o.newlineSet = true
	}
}

// WithLineBuffering requests line-buffered writes. Not implemented;
// opening with it enabled fails.
func WithLineBuffering(enabled bool) FileOption {
	return func(o *fileOptions) { o.lineBuffering = enabled }
}

// OpenFile opens the file addressed by a fully qualified root URL.
//
// The URL is validated in two steps: overall URL well-formedness, then the
// grammar of its path component. The mode token is translated into the
// protocol open-flag combination and a remote open is issued; opening a
// missing file in a read mode yields a NotFoundError.
func OpenFile(client Client, rawurl, mode string, opts ...FileOption) (*File, error) {
	if !IsValidURL(rawurl) {
		return nil, &PathError{URL: rawurl}
	}
	_, fsPath, _, err := SplitURL(rawurl)
	if err != nil {
		return nil, err
	}
	if !IsValidPath(fsPath) {
		return nil, &InvalidPathError{Path: fsPath}
	}

	options := fileOptions{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.newlineSet && options.newline != "" && options.newline != "\n" {
		return nil, &UnsupportedError{Msg: fmt.Sprintf("newline sequence %q", options.newline)}
	}
	if options.lineBuffering {
		return nil, &UnsupportedError{Msg: "line buffering for writing"}
	}
	if options.bufferSize <= 0 {
		return nil, &UnsupportedError{Msg: fmt.Sprintf("buffer size %d", options.bufferSize)}
	}

	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	fc, st := client.Open(fsPath, m.Flags())
	if !st.IsOK() {
		return nil, fileStatusError(rawurl, "instantiating", st)
	}

	f := &File{
		client:     fc,
		url:        rawurl,
		mode:       m,
		bufferSize: options.bufferSize,
		newline:    []byte("\n"),
	}

	if m.Appending() {
		size, err := f.Size()
		if err != nil {
			fc.Close()
			return nil, err
		}
		f.pos = size
	}

	if m.Streaming() && m.CanRead() {
		f.stream = newStreamReader(fc, f.url, f.bufferSize)
	}

	return f, nil
}

// Name returns the base name of the file.
func (f *File) Name() string { return path.Base(f.url) }

// URL returns the full remote address the file was opened with.
func (f *File) URL() string { return f.url }

// Mode returns the parsed open mode.
func (f *File) Mode() Mode { return f.mode }

// Closed reports whether the underlying remote handle is closed.
func (f *File) Closed() bool { return !f.client.IsOpen() }

// Tell returns the emulated cursor position. It stays meaningful in
// streaming modes, where only Seek is forbidden.
func (f *File) Tell() int64 { return f.pos }

// Size returns the file size in bytes, fetching and caching it on first
// use. Writes and truncation keep the cache consistent.
func (f *File) Size() (int64, error) {
	if f.Closed() {
		return 0, f.errClosed("stat")
	}
	if !f.sizeKnown {
		info, st := f.client.Stat()
		if !st.IsOK() {
			return 0, fileStatusError(f.url, "retrieving size of", st)
		}
		f.size = info.Size
		f.sizeKnown = true
	}
	return f.size, nil
}

// Read reads up to len(p) bytes at the cursor. At or past end of file it
// returns (0, io.EOF) indefinitely.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.readAtCursor(p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAll reads from the cursor to end of file in a single remote read.
func (f *File) ReadAll() ([]byte, error) {
	if f.stream != nil {
		return f.readAllStream()
	}
	if f.Closed() {
		return nil, f.errClosed("read")
	}
	if err := f.checkRead(); err != nil {
		return nil, err
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	chunk := size - f.pos
	if chunk < 0 {
		// Past end of file: probe with a single byte, which comes back
		// empty and leaves the cursor where it is.
		chunk = 1
	}
	buf := make([]byte, chunk)
	n, err := f.readChunk(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (f *File) readAllStream() ([]byte, error) {
	var out []byte
	buf := make([]byte, f.bufferSize)
	for {
		n, err := f.readAtCursor(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// readAtCursor is the shared read core. It returns (0, nil) at end of
// file; callers translate that into their own EOF signal.
func (f *File) readAtCursor(p []byte) (int, error) {
	if f.Closed() {
		return 0, f.errClosed("read")
	}
	if err := f.checkRead(); err != nil {
		return 0, err
	}
	if f.stream != nil {
		n, err := f.stream.Read(p)
		f.pos += int64(n)
		if err == io.EOF {
			return n, nil
		}
		return n, err
	}
	return f.readChunk(p)
}

// readChunk issues one offset-addressed remote read of len(p) bytes at
// the cursor. The cursor advances by the requested chunk size, clamped so
// it never moves past the known end of file.
func (f *File) readChunk(p []byte) (int, error) {
	size, err := f.Size()
	if err != nil {
		return 0, err
	}
	chunk := int64(len(p))
	if chunk >= maxChunk {
		return 0, &ResourceError{Path: f.url, Op: "reading", Msg: fmt.Sprintf("chunk size %d exceeds 2GB", chunk)}
	}
	n, st := f.client.ReadAt(p, f.pos)
	if !st.IsOK() {
		return 0, fileStatusError(f.url, "reading", st)
	}
	limit := max(size, f.pos)
	f.pos = min(f.pos+chunk, limit)
	return n, nil
}

// ReadLine reads one line including its trailing newline. The final line
// of a file that does not end with a newline is returned without one.
// After the last line it returns (nil, io.EOF).
func (f *File) ReadLine() ([]byte, error) {
	var bits [][]byte
	head := []byte(nil)
	if f.lineBufPos == f.pos {
		head = f.lineBuf
	}
	bits = append(bits, head)
	idx := bytes.Index(head, f.newline)

	for idx == -1 {
		chunk := make([]byte, f.bufferSize)
		n, err := f.readAtCursor(chunk)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		bits = append(bits, chunk[:n])
		idx = bytes.Index(chunk[:n], f.newline)
	}

	if idx == -1 {
		// End of file with no newline: hand back everything gathered and
		// consume the read-ahead buffer so iteration terminates.
		f.lineBuf = nil
		line := bytes.Join(bits, nil)
		if len(line) == 0 {
			return nil, io.EOF
		}
		return line, nil
	}

	last := bits[len(bits)-1]
	idx += len(f.newline)
	bits[len(bits)-1] = last[:idx]
	f.lineBuf = last[idx:]
	f.lineBufPos = f.pos
	return bytes.Join(bits, nil), nil
}

// ReadLines reads the remainder of the file as a slice of lines.
func (f *File) ReadLines() ([][]byte, error) {
	var lines [][]byte
	for {
		line, err := f.ReadLine()
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

// Write writes p at the cursor. In append modes the cursor is first
// forced to the true end of file, regardless of any preceding Seek;
// seeking in append mode affects only where subsequent reads occur.
func (f *File) Write(p []byte) (int, error) {
	if f.Closed() {
		return 0, f.errClosed("write")
	}
	if err := f.checkWrite(); err != nil {
		return 0, err
	}
	if f.mode.Appending() {
		size, err := f.Size()
		if err != nil {
			return 0, err
		}
		f.pos = size
	}
	if _, st := f.client.WriteAt(p, f.pos); !st.IsOK() {
		return 0, fileStatusError(f.url, "writing", st)
	}
	size, err := f.Size()
	if err != nil {
		return 0, err
	}
	f.pos += int64(len(p))
	f.size = max(size, f.pos)
	return len(p), nil
}

// WriteFlush writes p and immediately syncs the remote file.
func (f *File) WriteFlush(p []byte) (int, error) {
	n, err := f.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.Sync()
}

// Sync flushes the remote write buffers. Calling it on a closed file is
// a no-op.
func (f *File) Sync() error {
	if f.Closed() {
		return nil
	}
	if st := f.client.Sync(); !st.IsOK() {
		return fileStatusError(f.url, "flushing write buffer of", st)
	}
	return nil
}

// Seek sets the cursor. Streaming modes forbid it. A negative offset is
// only accepted relative to end of file, and the resulting absolute
// position must not be negative. Seeking past end of file is legal; the
// gap is zero-filled lazily by a later write or truncate.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if !f.mode.Seekable() {
		return 0, &ResourceError{Path: f.url, Op: "seeking", Msg: "file is not seekable"}
	}
	if offset < 0 && whence != io.SeekEnd {
		return 0, &ResourceError{Path: f.url, Op: "seeking", Msg: "invalid argument"}
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		size, err := f.Size()
		if err != nil {
			return 0, err
		}
		pos = size + offset
	default:
		return 0, &UnsupportedError{Msg: fmt.Sprintf("seek whence %d", whence)}
	}
	if pos < 0 {
		return 0, &ResourceError{Path: f.url, Op: "seeking", Msg: "invalid argument"}
	}
	f.pos = pos
	return pos, nil
}

// Truncate resizes the file. Growing beyond the current size zero-fills
// the gap. The cursor does not move, even when it ends up past the new
// end of file.
func (f *File) Truncate(size int64) error {
	if f.Closed() {
		return f.errClosed("truncate")
	}
	if err := f.checkTruncate(); err != nil {
		return err
	}
	if st := f.client.Truncate(size); !st.IsOK() {
		return fileStatusError(f.url, "truncating", st)
	}
	f.size = size
	f.sizeKnown = true
	return nil
}

// TruncateAt truncates the file to the current cursor position.
func (f *File) TruncateAt() error { return f.Truncate(f.pos) }

// Close releases the remote resource. Closing an already-closed file is a
// silent no-op; a close the server rejects surfaces as an error.
func (f *File) Close() error {
	if f.Closed() {
		return nil
	}
	if f.stream != nil {
		f.stream.Close()
	}
	if st := f.client.Close(); !st.IsOK() {
		return fileStatusError(f.url, "closing", st)
	}
	return nil
}

func (f *File) errClosed(op string) error {
	return fmt.Errorf("%s %s: %w", op, f.url, fs.ErrClosed)
}

func (f *File) checkRead() error {
	if !f.mode.CanRead() {
		return &ResourceError{Path: f.url, Op: "reading", Msg: "file not opened for reading"}
	}
	return nil
}

func (f *File) checkWrite() error {
	if !f.mode.CanWrite() {
		return &ResourceError{Path: f.url, Op: "writing", Msg: "file not opened for writing"}
	}
	return nil
}

func (f *File) checkTruncate() error {
	if !f.mode.Seekable() {
		return &ResourceError{Path: f.url, Op: "truncating", Msg: "file is not seekable"}
	}
	if !f.mode.CanTruncate() {
		return &ResourceError{Path: f.url, Op: "truncating", Msg: "file not opened for writing"}
	}
	return nil
}
