package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// readDirNames lists the base names (extension stripped) of files in dir,
// sorted ascending. A missing directory yields an empty list, not an error.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		names = append(names, strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	}
	sort.Strings(names)
	return names, nil
}
