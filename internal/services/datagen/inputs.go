package datagen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const rootExt = ".root"

// ResolveInputs expands inputs into a list of ROOT files. Entries ending in
// .root are kept as given, which includes remote root:// URLs. Directories
// contribute the .root files they contain directly, sorted by name.
func ResolveInputs(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		if strings.HasSuffix(in, rootExt) {
			files = append(files, in)
			continue
		}

		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("don't know what to do with %q", in)
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", in, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), rootExt) {
				continue
			}
			found = append(found, filepath.Join(in, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
