package xrootdfs

import (
	"fmt"
	"io"

	"github.com/eikenb/pipeat"
)

// streamReader prefetches a remote file sequentially through a pipe,
// giving streaming-mode opens reader semantics without exposing Seek.
type streamReader struct {
	r *pipeat.PipeReaderAt
	w *pipeat.PipeWriterAt
}

func newStreamReader(fc FileClient, url string, chunkSize int) *streamReader {
	r, w, err := pipeat.Pipe()
	if err != nil {
		// Pipe creation only fails when no scratch file can be made;
		// fall back to a pipe pair that reports the failure on first read.
		return &streamReader{}
	}

	s := &streamReader{r: r, w: w}

	go func() {
		buf := make([]byte, chunkSize)
		var off int64
		for {
			n, st := fc.ReadAt(buf, off)
			if !st.IsOK() {
				w.CloseWithError(fileStatusError(url, "streaming", st))
				return
			}
			if n == 0 {
				w.Close()
				return
			}
			if _, err := w.WriteAt(buf[:n], off); err != nil {
				w.CloseWithError(err)
				return
			}
			off += int64(n)
		}
	}()

	return s
}

func (s *streamReader) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, fmt.Errorf("streaming: %w", io.ErrClosedPipe)
	}
	return s.r.Read(p)
}

func (s *streamReader) Close() error {
	if s.r == nil {
		return nil
	}
	return s.r.Close()
}
