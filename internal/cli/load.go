package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/doxnav/internal/bundle"
)

// loadSite reads the bundle rooted at dir. Load failures are command errors.
func loadSite(dir string, log *slog.Logger) (*bundle.Site, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read bundle", err)
	}
	if !info.IsDir() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s is not a directory", dir))
	}
	site, err := bundle.Load(os.DirFS(dir))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot load bundle", err)
	}
	site.ID = filepath.Base(filepath.Clean(dir))
	site.Name = site.ID
	for _, w := range site.Warnings {
		log.Warn("bundle warning", "detail", w)
	}
	log.Debug("loaded bundle", "dir", dir, "entries", site.Search.Len(), "shards", site.ShardCount, "pages", site.PageCount)
	return site, nil
}
