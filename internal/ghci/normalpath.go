package ghci

import (
	"path/filepath"
	"strings"
)

// NormalPath is a path carried in both its canonical absolute form and a
// form relative to the session's working directory. Equality and
// ordering are by the absolute form; display uses the relative form.
type NormalPath struct {
	abs string
	rel string
}

// NewNormalPath resolves path (which may be relative or absolute) against
// cwd, producing both forms.
func NewNormalPath(path, cwd string) (NormalPath, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(cwd, abs)
	if err != nil {
		rel = abs
	}
	return NormalPath{abs: abs, rel: filepath.ToSlash(rel)}, nil
}

// Absolute returns the canonical absolute path.
func (p NormalPath) Absolute() string { return p.abs }

// Relative returns the path relative to the session's working directory,
// slash-separated.
func (p NormalPath) Relative() string { return p.rel }

// String implements fmt.Stringer using the relative display form.
func (p NormalPath) String() string { return p.rel }

// Equal compares two NormalPaths by their absolute form.
func (p NormalPath) Equal(o NormalPath) bool { return p.abs == o.abs }

// Less orders two NormalPaths by their absolute form, for use as a
// BTreeMap-style ordered key.
func (p NormalPath) Less(o NormalPath) bool { return p.abs < o.abs }

// IsSourceFile reports whether path's extension is in exts (a
// case-insensitive set of extensions without the leading dot).
func IsSourceFile(path string, exts map[string]bool) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return exts[strings.ToLower(ext)]
}
