package xrootdfs

import "fmt"

// Mode is the parsed form of an open-mode token. Recognized tokens are
// r, r+, r-, w, w+, w-, a and a+; a trailing b or t is accepted and
// ignored. The "-" modifier marks streamed, sequential-only access, the
// "+" modifier additionally allows the opposite I/O direction.
type Mode struct {
	str       string
	read      bool
	write     bool
	appending bool
	streaming bool
	plus      bool
}

// ParseMode validates and parses a mode token.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Mode{}, fmt.Errorf("empty file mode")
	}
	m := Mode{str: s}
	switch s[0] {
	case 'r':
		m.read = true
	case 'w':
		m.write = true
	case 'a':
		m.appending = true
	default:
		return Mode{}, fmt.Errorf("unrecognized file mode %q", s)
	}
	for _, c := range s[1:] {
		switch c {
		case '+':
			m.plus = true
		case '-':
			m.streaming = true
		case 'b', 't':
			// ignored, all remote data is binary
		default:
			return Mode{}, fmt.Errorf("unrecognized file mode %q", s)
		}
	}
	return m, nil
}

func (m Mode) String() string { return m.str }

// CanRead reports whether the mode permits reading.
func (m Mode) CanRead() bool { return m.read || m.plus }

// CanWrite reports whether the mode permits writing.
func (m Mode) CanWrite() bool { return m.write || m.appending || m.plus }

// CanTruncate reports whether the mode permits truncation.
func (m Mode) CanTruncate() bool {
	if m.plus {
		return true
	}
	return (m.write || m.appending) && !m.streaming
}

// Seekable reports whether seeking is allowed.
func (m Mode) Seekable() bool { return !m.streaming }

// Appending reports whether writes are forced to end-of-file.
func (m Mode) Appending() bool { return m.appending }

// Streaming reports whether the mode is sequential-only.
func (m Mode) Streaming() bool { return m.streaming }

// Flags translates the mode into the protocol open-flag combination:
// update-in-place for r+ and append modes, delete-and-recreate for write
// modes, plain read for read-only.
func (m Mode) Flags() OpenFlags {
	switch {
	case (m.read && m.plus) || m.appending:
		return OpenFlagsUpdate
	case m.write:
		return OpenFlagsDelete
	case m.read:
		return OpenFlagsRead
	}
	return OpenFlagsNone
}
