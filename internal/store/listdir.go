package store

import (
	"os"
	"sort"

	"github.com/moby/patternmatcher"

	"github.com/grovetools/studio/internal/state"
)

// NewDirLister returns the default explorer lister: entries matching any
// ignore pattern are filtered out, directories sort before files, and each
// group is alphabetical. Invalid patterns are skipped at construction so a
// bad config line cannot take the explorer down.
func NewDirLister(ignorePatterns []string) ListDirFunc {
	var pm *patternmatcher.PatternMatcher
	if len(ignorePatterns) > 0 {
		var err error
		pm, err = patternmatcher.New(ignorePatterns)
		if err != nil {
			pm = nil
		}
	}

	return func(path string) ([]state.DirEntry, error) {
		dirents, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		entries := make([]state.DirEntry, 0, len(dirents))
		for _, de := range dirents {
			if pm != nil {
				if ignored, err := pm.MatchesOrParentMatches(de.Name()); err == nil && ignored {
					continue
				}
			}
			entries = append(entries, state.DirEntry{Name: de.Name(), IsDir: de.IsDir()})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].IsDir != entries[j].IsDir {
				return entries[i].IsDir
			}
			return entries[i].Name < entries[j].Name
		})
		return entries, nil
	}
}
