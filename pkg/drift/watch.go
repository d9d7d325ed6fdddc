package drift

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/obra/boxkit/pkg/manifest"
)

// Watch reports a verdict for projectDir immediately and again whenever a
// manifest in the project or in its canonical template changes. It returns
// when ctx is done.
func (d *Detector) Watch(ctx context.Context, projectDir string, fn func(Verdict)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(projectDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", projectDir, err)
	}

	watched := ""
	report := func() {
		v := d.Check(projectDir)
		// Follow the template the project currently points at.
		if v.TemplateType != "" {
			dir := d.TemplateDir(v.TemplateType)
			if dir != watched {
				if watched != "" {
					_ = watcher.Remove(watched)
				}
				if info, err := os.Stat(dir); err == nil && info.IsDir() && watcher.Add(dir) == nil {
					watched = dir
				} else {
					watched = ""
				}
			}
		}
		fn(v)
	}

	report()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isManifestEvent(event) {
				report()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)
		}
	}
}

func isManifestEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(manifest.Names, filepath.Base(event.Name))
}
