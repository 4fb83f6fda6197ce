package xrootdfs

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether raw is a well-formed root:// or roots:// URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "root" || u.Scheme == "roots") && u.Host != ""
}

// IsValidPath reports whether p satisfies the XRootD path grammar: it
// starts with two slashes and contains no other two adjacent slashes.
func IsValidPath(p string) bool {
	if len(p) <= 1 {
		return false
	}
	if !strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.Contains(p[1:], "//")
}

// SplitURL splits a root URL into its scheme+host part, its path and its
// query string.
func SplitURL(raw string) (rootURL, fsPath, query string, err error) {
	u, perr := url.Parse(raw)
	if perr != nil || (u.Scheme != "root" && u.Scheme != "roots") {
		return "", "", "", &PathError{URL: raw}
	}
	netloc := u.Host
	if u.User != nil {
		netloc = u.User.String() + "@" + u.Host
	}
	return u.Scheme + "://" + netloc, u.Path, u.RawQuery, nil
}
