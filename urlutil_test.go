package xrootdfs

import (
	"testing"
)

func TestSplitURL(t *testing.T) {
	tests := []struct {
		url   string
		root  string
		path  string
		query string
	}{
		{
			url:  "root://eosuser.cern.ch//eos/user",
			root: "root://eosuser.cern.ch",
			path: "//eos/user",
		},
		{
			url:  "root://eosuser.cern.ch/",
			root: "root://eosuser.cern.ch",
			path: "/",
		},
		{
			url:  "root://eosuser.cern.ch",
			root: "root://eosuser.cern.ch",
		},
		{
			url:  "root://user:pw@eosuser.cern.ch//eos",
			root: "root://user:pw@eosuser.cern.ch",
			path: "//eos",
		},
		{
			url:   "root://eosuser.cern.ch//eos?xrd.wantprot=krb5",
			root:  "root://eosuser.cern.ch",
			path:  "//eos",
			query: "xrd.wantprot=krb5",
		},
		{
			url:  "roots://eosuser.cern.ch//eos",
			root: "roots://eosuser.cern.ch",
			path: "//eos",
		},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			root, path, query, err := SplitURL(tt.url)
			if err != nil {
				t.Fatalf("SplitURL(%q) = %v", tt.url, err)
			}
			if root != tt.root {
				t.Errorf("root = %q, want %q", root, tt.root)
			}
			if path != tt.path {
				t.Errorf("path = %q, want %q", path, tt.path)
			}
			if query != tt.query {
				t.Errorf("query = %q, want %q", query, tt.query)
			}
		})
	}
}

func TestSplitURLInvalid(t *testing.T) {
	for _, raw := range []string{"http://localhost", "ftp://host//x", "localhost//x"} {
		t.Run(raw, func(t *testing.T) {
			if _, _, _, err := SplitURL(raw); err == nil {
				t.Errorf("SplitURL(%q) succeeded, want error", raw)
			}
		})
	}
}

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "root://localhost//tmp", want: true},
		{url: "roots://localhost//tmp", want: true},
		{url: "root://user@host//tmp", want: true},
		{url: "http://localhost//tmp", want: false},
		{url: "root://", want: false},
		{url: "//tmp", want: false},
		{url: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsValidURL(tt.url); got != tt.want {
				t.Errorf("IsValidURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "//tmp", want: true},
		{path: "//tmp/data/file.txt", want: true},
		{path: "//", want: true},
		{path: "/tmp", want: false},
		{path: "//tmp//data", want: false},
		{path: "/", want: false},
		{path: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsValidPath(tt.path); got != tt.want {
				t.Errorf("IsValidPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
