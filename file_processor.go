package fileschema

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
)

// PathGroup is the set of files found in one directory below a root path
type PathGroup struct {
	Dir   string
	Paths []string
}

// CollectPaths walks layout.RootPath and returns the matching files grouped by
// directory. Directories and files are in lexical order. A root that names a file
// yields one group holding that file. Subdirectories are only visited when
// layout.Recursive is set.
func CollectPaths(layout model.RootPath) ([]PathGroup, error) {
	if err := validatePath(layout.RootPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(layout.RootPath)
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to stat path %s", layout.RootPath)
	}
	if !info.IsDir() {
		return []PathGroup{{Dir: filepath.Dir(layout.RootPath), Paths: []string{layout.RootPath}}}, nil
	}

	groups := make(map[string][]string)
	err = filepath.WalkDir(layout.RootPath, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filePath != layout.RootPath && !layout.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		matched, err := matchesFilters(layout, filePath)
		if err != nil {
			return err
		}
		if matched {
			dir := filepath.Dir(filePath)
			groups[dir] = append(groups[dir], filePath)
		}
		return nil
	})
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to walk directory %s", layout.RootPath)
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)

	result := make([]PathGroup, 0, len(dirs))
	for _, dir := range dirs {
		paths := deduplicateCompressedFiles(groups[dir])
		slices.Sort(paths)
		result = append(result, PathGroup{Dir: dir, Paths: paths})
	}
	return result, nil
}

// matchesFilters reports whether the file name matches one of the glob filters.
// Without filters every file whose type the layout can handle is accepted.
func matchesFilters(layout model.RootPath, filePath string) (bool, error) {
	name := filepath.Base(filePath)
	if len(layout.Filters) == 0 {
		return layout.ResolveFileType(filePath) != model.FileTypeUnsupported, nil
	}
	for _, pattern := range layout.Filters {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return false, model.Configurationf("invalid filter %q: %v", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// deduplicateCompressedFiles drops compressed files when the uncompressed file is
// present in the same set
func deduplicateCompressedFiles(paths []string) []string {
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}

	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if plain := model.StripCompressionExt(p); plain != p && present[plain] {
			continue
		}
		result = append(result, p)
	}
	return result
}

// flattenGroups returns every path of the groups in order
func flattenGroups(groups []PathGroup) []string {
	var paths []string
	for _, g := range groups {
		paths = append(paths, g.Paths...)
	}
	return paths
}

// groupPaths groups explicit paths by their directory, keeping first-seen order
func groupPaths(paths []string) []PathGroup {
	var groups []PathGroup
	index := make(map[string]int)
	for _, p := range paths {
		dir := filepath.Dir(p)
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, PathGroup{Dir: dir})
		}
		groups[i].Paths = append(groups[i].Paths, p)
	}
	return groups
}

// validatePath rejects empty and missing paths
func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return model.Configurationf("path cannot be empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: path does not exist: %s", model.ErrSourceRead, path)
		}
		return model.WrapSourceRead(err, "failed to stat path %s", path)
	}
	return nil
}
