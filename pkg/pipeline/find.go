package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// Extensions are the accepted source image extensions, compared case-insensitively.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// IsImage reports whether path has an accepted image extension.
func IsImage(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Find returns the source images directly inside dir, sorted by name.
func Find(dir string) ([]string, error) {
	des, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	found := []string{}
	for _, de := range des {
		name := de.Name()
		if name[0] == '.' {
			continue
		}
		if de.IsDir() || !IsImage(name) {
			klog.V(2).Infof("skipping %s", name)
			continue
		}
		found = append(found, filepath.Join(dir, name))
	}

	slices.Sort(found)
	klog.V(1).Infof("found %d images in %s", len(found), dir)
	return found, nil
}
