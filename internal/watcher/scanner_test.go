package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under dir from a path to content map. Each file
// is staged outside dir and renamed into place so a concurrent scan never
// sees it half written.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	staging := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))

		tmp := filepath.Join(staging, filepath.Base(full))
		require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
		require.NoError(t, os.Rename(tmp, full))
	}
}

func newTestScanner(dir string, patterns []string, excludes ...string) *Scanner {
	return NewScanner(afero.NewBasePathFs(afero.NewOsFs(), dir), patterns, ExcludeSubstrings(excludes...))
}

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"./**", "**"},
		{"**", "**"},
		{"./static/*.css", "static/*.css"},
		{"static//js/**", "static/js/**"},
		{"././src/*", "src/*"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePattern(tt.in))
		})
	}
}

func TestScannerCandidates(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"static/template.html": "<body></body>",
		"static/a.css":         "p{}",
		"index.html":           "old output",
		".git/HEAD":            "ref",
		"notes/todo.txt":       "x",
	})

	s := newTestScanner(dir, []string{"./**", "static/*"}, "index.html", ".git/")
	got, err := s.Candidates()
	require.NoError(t, err)

	assert.Contains(t, got, "static/template.html")
	assert.Contains(t, got, "static/a.css")
	assert.Contains(t, got, "notes/todo.txt")
	assert.Contains(t, got, "static")
	assert.NotContains(t, got, "index.html")
	assert.NotContains(t, got, ".git/HEAD")

	seen := make(map[string]int)
	for _, c := range got {
		seen[c]++
	}
	assert.Equal(t, 1, seen["static/a.css"], "overlapping patterns must not duplicate paths")
	assert.IsIncreasing(t, got)
}

func TestScannerScan(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"static/a.txt": "hello",
		"empty.txt":    "",
	})

	s := newTestScanner(dir, []string{"**"})
	fp, err := s.Scan()
	require.NoError(t, err)

	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", fp["static/a.txt"])
	// sha256("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", fp["empty.txt"])

	h, ok := fp["static"]
	require.True(t, ok)
	assert.Empty(t, h, "directories hash to the empty sentinel")
	assert.Contains(t, fp.Dirs(), "static")
}

func TestScannerIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.md":     "# a",
		"b/c.js":   "let c;",
		"b/d/e.js": "let e;",
	})

	s := newTestScanner(dir, []string{"./**"})
	first, err := s.Scan()
	require.NoError(t, err)
	second, err := s.Scan()
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestScannerIgnoresTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.css": "p{}"})

	s := newTestScanner(dir, []string{"**"})
	before, err := s.Scan()
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.css"), later, later))

	after, err := s.Scan()
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestScannerSeesChanges(t *testing.T) {
	tests := []struct {
		name   string
		change func(t *testing.T, dir string)
		check  func(t *testing.T, added, removed, modified []string)
	}{
		{
			name: "modified",
			change: func(t *testing.T, dir string) {
				writeTree(t, dir, map[string]string{"a.css": "p{color:red}"})
			},
			check: func(t *testing.T, added, removed, modified []string) {
				assert.Equal(t, []string{"a.css"}, modified)
				assert.Empty(t, added)
				assert.Empty(t, removed)
			},
		},
		{
			name: "added",
			change: func(t *testing.T, dir string) {
				writeTree(t, dir, map[string]string{"b.css": "a{}"})
			},
			check: func(t *testing.T, added, removed, modified []string) {
				assert.Equal(t, []string{"b.css"}, added)
				assert.Empty(t, modified)
			},
		},
		{
			name: "removed",
			change: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "a.css")))
			},
			check: func(t *testing.T, added, removed, modified []string) {
				assert.Equal(t, []string{"a.css"}, removed)
				assert.Empty(t, added)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTree(t, dir, map[string]string{"a.css": "p{}"})

			s := newTestScanner(dir, []string{"*.css"})
			before, err := s.Scan()
			require.NoError(t, err)

			tt.change(t, dir)

			after, err := s.Scan()
			require.NoError(t, err)
			assert.False(t, after.Equal(before))

			added, removed, modified := after.Diff(before)
			tt.check(t, added, removed, modified)
		})
	}
}

func TestScannerBadPattern(t *testing.T) {
	s := newTestScanner(t.TempDir(), []string{"src/[a-"})
	_, err := s.Scan()
	assert.Error(t, err)
}

func TestFingerprintEqual(t *testing.T) {
	a := Fingerprint{"x": "1", "d": ""}
	assert.True(t, a.Equal(Fingerprint{"d": "", "x": "1"}))
	assert.False(t, a.Equal(Fingerprint{"x": "1"}))
	assert.False(t, a.Equal(Fingerprint{"x": "2", "d": ""}))
	assert.False(t, a.Equal(Fingerprint{"y": "1", "d": ""}))
	assert.True(t, Fingerprint{}.Equal(nil))
}

func TestExcludeSubstrings(t *testing.T) {
	keep := ExcludeSubstrings(".git/", "index.html", "")

	assert.True(t, keep("static/template.html"))
	assert.True(t, keep(".git"))
	assert.False(t, keep(".git/HEAD"))
	assert.False(t, keep("index.html"))
	assert.False(t, keep("docs/index.html"))
}
