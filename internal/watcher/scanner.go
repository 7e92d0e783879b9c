package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Fingerprint maps each candidate path to the hex SHA-256 of its content.
// Directories map to the empty string.
type Fingerprint map[string]string

// Equal reports whether both fingerprints hold the same paths with the same
// hashes. Order never matters.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f) != len(other) {
		return false
	}
	for p, h := range f {
		oh, ok := other[p]
		if !ok || oh != h {
			return false
		}
	}
	return true
}

// Diff lists the paths that differ between prev and f, sorted.
func (f Fingerprint) Diff(prev Fingerprint) (added, removed, modified []string) {
	for p, h := range f {
		ph, ok := prev[p]
		switch {
		case !ok:
			added = append(added, p)
		case ph != h:
			modified = append(modified, p)
		}
	}
	for p := range prev {
		if _, ok := f[p]; !ok {
			removed = append(removed, p)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(modified)

	return added, removed, modified
}

// Dirs returns the directory entries, sorted.
func (f Fingerprint) Dirs() []string {
	var dirs []string
	for p, h := range f {
		if h == "" {
			dirs = append(dirs, p)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// FileFilter determines if a candidate path should be fingerprinted.
type FileFilter func(path string) bool

// ExcludeSubstrings drops every path containing one of excludes.
func ExcludeSubstrings(excludes ...string) FileFilter {
	return func(p string) bool {
		for _, e := range excludes {
			if e != "" && strings.Contains(p, e) {
				return false
			}
		}
		return true
	}
}

// Scanner expands glob patterns and fingerprints what they match.
type Scanner struct {
	fs       afero.Fs
	fsys     fs.FS
	patterns []string
	filters  []FileFilter
}

// NewScanner creates a scanner over fsys. Patterns are doublestar globs
// relative to the root of fsys; a leading "./" is accepted.
func NewScanner(fsys afero.Fs, patterns []string, filters ...FileFilter) *Scanner {
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		normalized = append(normalized, NormalizePattern(p))
	}

	return &Scanner{
		fs:       fsys,
		fsys:     afero.NewIOFS(fsys),
		patterns: normalized,
		filters:  filters,
	}
}

// NormalizePattern rewrites a pattern to the slash-separated, unrooted form
// io/fs globbing expects: "./**" becomes "**".
func NormalizePattern(pattern string) string {
	p := path.Clean(filepath.ToSlash(pattern))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// Candidates expands the patterns and applies the filters. The result is
// sorted and free of duplicates.
func (s *Scanner) Candidates() ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range s.patterns {
		matches, err := doublestar.Glob(s.fsys, pattern)
		if err != nil {
			return nil, err
		}

	next:
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true

			for _, keep := range s.filters {
				if !keep(m) {
					continue next
				}
			}
			out = append(out, m)
		}
	}

	sort.Strings(out)
	return out, nil
}

// Scan computes the fingerprint of every candidate. Candidates removed
// between globbing and hashing are skipped; the next scan no longer lists
// them either.
func (s *Scanner) Scan() (Fingerprint, error) {
	candidates, err := s.Candidates()
	if err != nil {
		return nil, err
	}

	fp := make(Fingerprint, len(candidates))
	for _, c := range candidates {
		h, err := s.hash(c)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		fp[c] = h
	}

	return fp, nil
}

func (s *Scanner) hash(name string) (string, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}

	f, err := s.fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
