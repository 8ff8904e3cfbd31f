package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/xtclang/xvm-sub016/vm/image"
)

// ResolveImage maps an image argument to a file. A path that exists is
// used as given; otherwise name, and name with the image extension, are
// looked up in each image.path directory in order.
func (c *Config) ResolveImage(fs afero.Fs, name string) (string, error) {
	if ok, _ := afero.Exists(fs, name); ok {
		return name, nil
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("image %s not found", name)
	}

	candidates := []string{name}
	if filepath.Ext(name) != image.Extension {
		candidates = append(candidates, name+image.Extension)
	}
	var tried []string
	for _, dir := range c.Image.Path {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.Dir, dir)
		}
		for _, cand := range candidates {
			path := filepath.Join(dir, cand)
			if ok, _ := afero.Exists(fs, path); ok {
				return path, nil
			}
			tried = append(tried, path)
		}
	}
	return "", fmt.Errorf("image %q not found (tried %v)", name, tried)
}

// Entries returns the entry points to run: explicit ones when given,
// else run.entries, else the image's own.
func (c *Config) Entries(explicit []string, img *image.Image) []string {
	switch {
	case len(explicit) > 0:
		return explicit
	case len(c.Run.Entries) > 0:
		return c.Run.Entries
	}
	return img.Entries
}
