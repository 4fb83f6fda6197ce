// Command xrootdftp serves an XRootD-backed filesystem over SFTP, so
// regular SFTP clients can browse and transfer remote storage.
//
// Based on example server code from golang.org/x/crypto/ssh and the
// pkg/sftp request server.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/jacoelho/xrootdfs"
	"github.com/jacoelho/xrootdfs/xrdtest"
)

func main() {
	var (
		addr     string
		rootURL  string
		keyPath  string
		user     string
		password string
		readOnly bool
	)

	flag.StringVar(&addr, "addr", "0.0.0.0:2022", "listen address")
	flag.StringVar(&rootURL, "url", "root://localhost//tmp", "root URL of the served filesystem")
	flag.StringVar(&keyPath, "key", "id_rsa", "ssh host key file")
	flag.StringVar(&user, "user", "testuser", "sftp username")
	flag.StringVar(&password, "password", "", "sftp password (required)")
	flag.BoolVar(&readOnly, "readonly", false, "reject write operations")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if password == "" {
		logger.Error("missing -password")
		os.Exit(2)
	}

	// The in-memory backend stands in for a protocol client; swap in a
	// real one by providing a different xrootdfs.Client here.
	x, err := xrootdfs.New(rootURL, xrdtest.NewServer())
	if err != nil {
		logger.Error("invalid root url", "url", rootURL, "error", err)
		os.Exit(2)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}

	privateBytes, err := os.ReadFile(keyPath)
	if err != nil {
		logger.Error("failed to load private key", "path", keyPath, "error", err)
		os.Exit(1)
	}
	private, err := ssh.ParsePrivateKey(privateBytes)
	if err != nil {
		logger.Error("failed to parse private key", "error", err)
		os.Exit(1)
	}
	config.AddHostKey(private)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}
	logger.Info("listening", "addr", listener.Addr().String(), "url", x.RootURL())

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error("accept failed", "error", err)
			continue
		}
		go serveConn(conn, config, x, readOnly, logger)
	}
}

func serveConn(conn net.Conn, config *ssh.ServerConfig, x *xrootdfs.FS, readOnly bool, logger *slog.Logger) {
	defer conn.Close()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		logger.Warn("handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	logger.Info("session established", "user", sconn.User(), "remote", conn.RemoteAddr().String())

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			logger.Warn("could not accept channel", "error", err)
			return
		}

		go func(in <-chan *ssh.Request) {
			for req := range in {
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				req.Reply(ok, nil)
			}
		}(requests)

		server := sftp.NewRequestServer(channel, sftpHandler(x, readOnly))
		if err := server.Serve(); err != nil && err != io.EOF {
			logger.Warn("sftp server stopped", "error", err)
			return
		}
		logger.Info("sftp client exited session")
	}
}

func sftpHandler(x *xrootdfs.FS, readOnly bool) sftp.Handlers {
	h := &gateway{fs: x, readOnly: readOnly}
	return sftp.Handlers{
		FileGet:  h,
		FilePut:  h,
		FileCmd:  h,
		FileList: h,
	}
}

type gateway struct {
	fs       *xrootdfs.FS
	readOnly bool
}

func (g *gateway) Fileread(request *sftp.Request) (io.ReaderAt, error) {
	f, err := g.fs.Open(request.Filepath, "r")
	if err != nil {
		return nil, err
	}
	return &fileReaderAt{file: f}, nil
}

func (g *gateway) Filewrite(request *sftp.Request) (io.WriterAt, error) {
	if g.readOnly {
		return nil, sftp.ErrSSHFxPermissionDenied
	}
	f, err := g.fs.Open(request.Filepath, "w")
	if err != nil {
		return nil, err
	}
	return &fileWriterAt{file: f}, nil
}

func (g *gateway) Filecmd(request *sftp.Request) error {
	if g.readOnly {
		return sftp.ErrSSHFxPermissionDenied
	}
	switch request.Method {
	case "Mkdir":
		return g.fs.MakeDir(request.Filepath, true, false)
	case "Remove":
		return g.fs.Remove(request.Filepath)
	case "Rmdir":
		return g.fs.RemoveDir(request.Filepath, false)
	case "Rename", "PosixRename":
		isDir, err := g.fs.IsDir(request.Filepath)
		if err != nil {
			return err
		}
		if isDir {
			return g.fs.MoveDir(request.Filepath, request.Target, false)
		}
		return g.fs.Move(request.Filepath, request.Target, false)
	case "Setstat":
		return nil
	default:
		return fmt.Errorf("unsupported: %v", request.Method)
	}
}

func (g *gateway) Filelist(request *sftp.Request) (sftp.ListerAt, error) {
	iofs := g.fs.IOFS()
	name := sftpPath(request.Filepath)

	info, err := iofs.Stat(name)
	if err != nil {
		return nil, err
	}

	switch request.Method {
	case "Stat":
		return listerat{info}, nil
	case "List":
		if !info.IsDir() {
			return listerat{info}, nil
		}
		entries, err := iofs.ReadDir(name)
		if err != nil {
			return nil, err
		}
		lst := make(listerat, len(entries))
		for i := range entries {
			info, err := entries[i].Info()
			if err != nil {
				return nil, err
			}
			lst[i] = info
		}
		return lst, nil
	default:
		return nil, fmt.Errorf("unsupported: %v", request.Method)
	}
}

// sftpPath turns an sftp absolute path into an io/fs name.
func sftpPath(p string) string {
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "."
	}
	return cleaned[1:]
}

// fileReaderAt adapts the cursor-based file handle to io.ReaderAt for
// the sftp package, which issues offset-addressed reads.
type fileReaderAt struct {
	mu   sync.Mutex
	file *xrootdfs.File
}

func (r *fileReaderAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.file.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(r.file, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (r *fileReaderAt) Close() error { return r.file.Close() }

type fileWriterAt struct {
	mu   sync.Mutex
	file *xrootdfs.File
}

func (w *fileWriterAt) WriteAt(p []byte, off int64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *fileWriterAt) Close() error { return w.file.Close() }

type listerat []os.FileInfo

func (f listerat) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(f)) {
		return 0, io.EOF
	}
	n := copy(ls, f[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}
