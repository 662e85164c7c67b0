// Package walker enumerates indexable source files under a project root
// (spec §4.A). It walks with karrick/godirwalk the way reposearch's
// internal/indexer walks a repository, and matches caller-supplied
// exclude patterns with gobwas/glob the way project-cortex's
// internal/indexer/discovery.go matches its ignore list.
package walker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
)

// recognizedExt is the fixed set of extensions the spec considers
// indexable source code (spec §4.A).
var recognizedExt = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".java": true, ".c": true, ".cc": true, ".cpp": true,
	".cxx": true, ".h": true, ".hpp": true, ".go": true, ".rb": true,
	".php": true, ".cs": true, ".scala": true, ".swift": true, ".rs": true,
	".kt": true, ".kts": true, ".sh": true, ".bash": true, ".sql": true,
}

// defaultExcludeDirs is the fixed set of directory names always skipped,
// in addition to any hidden directory (spec §4.A).
var defaultExcludeDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, "venv": true,
	".env": true, "build": true, "dist": true, "out": true, "target": true,
	".next": true, ".nuxt": true, ".svelte-kit": true, "coverage": true,
	".nyc_output": true, ".pytest_cache": true, ".tox": true, ".eggs": true,
	"egg-info": true, ".cache": true, "tmp": true, "temp": true,
	".vscode": true, ".idea": true, ".Trash": true, ".npm": true,
}

// ragDataDir is the one hidden directory that must never be excluded by
// the "skip hidden directories" rule, since it holds the engine's own
// persisted state (spec §6).
const ragDataDir = ".terminal_helper"

// Walker enumerates indexable files under one project root.
type Walker struct {
	projectRoot  string
	excludeGlobs []glob.Glob
}

// New creates a Walker rooted at projectRoot with additional caller-supplied
// exclude glob patterns unioned onto the default directory-name set.
func New(projectRoot string, excludePatterns []string) (*Walker, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		resolvedRoot = absRoot
	}

	w := &Walker{projectRoot: resolvedRoot}
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			log.Warn().Str("pattern", pattern).Err(err).Msg("ignoring malformed exclude pattern")
			continue
		}
		w.excludeGlobs = append(w.excludeGlobs, g)
	}
	return w, nil
}

// Walk yields the absolute path of every indexable file under the
// project root, skipping excluded directories and permission errors per
// directory (spec §4.A). Results are returned in the order godirwalk's
// sorted traversal visits them, which is deterministic across runs on
// the same tree.
func (w *Walker) Walk() ([]string, error) {
	var files []string

	err := godirwalk.Walk(w.projectRoot, &godirwalk.Options{
		Unsorted: false,
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			log.Warn().Str("path", path).Err(err).Msg("skipping unreadable directory entry")
			return godirwalk.SkipNode
		},
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == w.projectRoot {
				return nil
			}

			resolved, err := w.resolveWithinRoot(path)
			if err != nil {
				return godirwalk.SkipThis
			}

			isDir := de.IsDir()
			if !isDir && de.IsSymlink() {
				info, statErr := os.Stat(resolved)
				if statErr != nil {
					return nil
				}
				isDir = info.IsDir()
			}

			name := filepath.Base(path)
			if isDir {
				if w.shouldExcludeDir(name, path) {
					return filepath.SkipDir
				}
				return nil
			}

			if w.matchesExclude(path) {
				return nil
			}
			if recognizedExt[strings.ToLower(filepath.Ext(path))] {
				files = append(files, resolved)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// resolveWithinRoot resolves symlinks and rejects any path that escapes
// the project root (spec §4.A: "must never escape project_root").
func (w *Walker) resolveWithinRoot(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	rel, err := filepath.Rel(w.projectRoot, resolved)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return resolved, nil
}

func (w *Walker) shouldExcludeDir(name, relOrAbsPath string) bool {
	if name == ragDataDir {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if defaultExcludeDirs[name] {
		return true
	}
	return w.matchesExclude(relOrAbsPath)
}

func (w *Walker) matchesExclude(path string) bool {
	rel, err := filepath.Rel(w.projectRoot, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.excludeGlobs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
