package modrinth

import (
	"context"
	"net/url"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/fetch"
)

var ErrNoIconName = errors.New("icon url has no file name")

// IconCache stores project icons under Dir, keyed by the file name at the
// end of the icon url.
type IconCache struct {
	Dir     string
	Fetcher *fetch.Fetcher
	Writes  *semaphore.Weighted
}

func iconName(iconURL string) (string, error) {
	u, err := url.Parse(iconURL)
	if err != nil {
		return "", err
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." || name == ".." {
		return "", errors.Wrapf(ErrNoIconName, "url: %s", iconURL)
	}

	return name, nil
}

// Get returns the local path of the icon, downloading it if it is not
// cached yet.
func (c *IconCache) Get(ctx context.Context, iconURL string) (string, error) {
	name, err := iconName(iconURL)
	if err != nil {
		return "", err
	}

	fs := osfs.New(c.Dir)

	if _, err := fs.Stat(name); err == nil {
		return filepath.Join(c.Dir, name), nil
	}

	data, err := c.Fetcher.Fetch(ctx, iconURL, fetch.Options{})
	if err != nil {
		return "", err
	}

	if c.Writes != nil {
		err = c.Writes.Acquire(ctx, 1)
		if err != nil {
			return "", err
		}

		defer c.Writes.Release(1)
	}

	err = util.WriteFile(fs, name, data, 0644)
	if err != nil {
		return "", errors.Wrapf(err, "caching icon %s", name)
	}

	return filepath.Join(c.Dir, name), nil
}
