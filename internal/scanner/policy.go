// Package scanner walks whitelisted roots and yields candidate file entries,
// applying exclusion rules and a symlink cycle guard.
package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// System directories that are never descended into, whitelisted or not.
var deniedDirs = []string{
	"/proc",
	"/sys",
	"/dev",
	"/run",
}

var deniedNames = []string{
	"System Volume Information",
	"$Recycle.Bin",
	"$WINDOWS.~BT",
}

// Policy decides which paths the scanner may enter or emit.
type Policy struct {
	excludes []glob.Glob
}

// NewPolicy compiles the exclusion glob patterns. Patterns are matched
// against absolute paths with '/' as separator.
func NewPolicy(excludePatterns []string) (*Policy, error) {
	p := &Policy{}
	for _, pat := range excludePatterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pat, err)
		}
		p.excludes = append(p.excludes, g)
	}
	return p, nil
}

// SkipDir reports whether a directory must not be descended into.
func (p *Policy) SkipDir(path string) bool {
	name := filepath.Base(path)
	if isHidden(name) {
		return true
	}
	for _, d := range deniedDirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	for _, n := range deniedNames {
		if name == n {
			return true
		}
	}
	return p.excluded(path)
}

// SkipFile reports whether a file entry must not be emitted.
func (p *Policy) SkipFile(path string) bool {
	if isHidden(filepath.Base(path)) {
		return true
	}
	return p.excluded(path)
}

func (p *Policy) excluded(path string) bool {
	norm := filepath.ToSlash(path)
	for _, g := range p.excludes {
		if g.Match(norm) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != string(filepath.Separator)
}
