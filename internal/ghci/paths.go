package ghci

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ShowPaths is the session's current working directory plus its ordered
// module search roots, as reported by ":show paths".
type ShowPaths struct {
	CWD         string
	SearchPaths []string
}

// MakeRelative resolves path against p.CWD, returning both forms.
func (p ShowPaths) MakeRelative(path string) (NormalPath, error) {
	return NewNormalPath(path, p.CWD)
}

// PathToModule derives a best-guess dotted module import name from a
// source path by stripping the longest matching search-path prefix and
// the file extension, then replacing path separators with dots.
func (p ShowPaths) PathToModule(path NormalPath) (string, error) {
	abs := path.Absolute()
	best := ""
	for _, sp := range p.SearchPaths {
		spAbs := sp
		if !filepath.IsAbs(spAbs) {
			spAbs = filepath.Join(p.CWD, spAbs)
		}
		spAbs = filepath.Clean(spAbs)
		if rel, err := filepath.Rel(spAbs, abs); err == nil && !strings.HasPrefix(rel, "..") {
			if len(spAbs) > len(best) {
				best = spAbs
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("ghci: %s is not under any search path", path)
	}
	rel, err := filepath.Rel(best, abs)
	if err != nil {
		return "", fmt.Errorf("ghci: resolve module for %s: %w", path, err)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "."), nil
}

// ParseShowPaths parses the output of ":show paths", which looks like:
//
//	Current working directory: /home/user/project
//	module import search paths:
//	    src
//	    app
func ParseShowPaths(output string, cwd string) (ShowPaths, error) {
	lines := strings.Split(output, "\n")
	p := ShowPaths{CWD: cwd}
	inSearchPaths := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(trimmed, "Current working directory:"); ok {
			p.CWD = strings.TrimSpace(rest)
			continue
		}
		if strings.Contains(strings.ToLower(trimmed), "module import search paths") {
			inSearchPaths = true
			continue
		}
		if inSearchPaths {
			p.SearchPaths = append(p.SearchPaths, trimmed)
		}
	}
	return p, nil
}
