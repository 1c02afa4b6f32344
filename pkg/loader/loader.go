// Package loader turns a requested mod loader version, which may be an
// alias, into the concrete version published in the loader metadata.
package loader

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/pack"
)

const (
	DefaultMetaURL = "https://meta.modrinth.com/"

	Latest = "latest"
	Stable = "stable"

	// GameVersionPlaceholder stands in for every game version in loaders
	// that do not publish per-version builds.
	GameVersionPlaceholder = "${modrinth.gameVersion}"
)

var (
	ErrNoLoaderVersion   = errors.Wrap(pack.ErrInvalidInput, "no matching loader version")
	ErrNoGameVersion     = errors.Wrap(pack.ErrInvalidInput, "loader does not support game version")
	ErrUnsupportedLoader = errors.Wrap(pack.ErrInvalidInput, "unsupported loader")
)

type Resolver interface {
	ResolveLoaderVersion(ctx context.Context, gameVersion string, loader pack.Loader, requested string) (string, error)
}

type Version struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Stable bool   `json:"stable"`
}

type GameVersion struct {
	ID      string    `json:"id"`
	Loaders []Version `json:"loaders"`
}

type Manifest struct {
	GameVersions []GameVersion `json:"gameVersions"`
}

// Find returns the loader builds usable with game, preferring an exact
// game version entry over the placeholder entry.
func (m *Manifest) Find(game string) ([]Version, bool) {
	var fallback *GameVersion

	for i := range m.GameVersions {
		gv := &m.GameVersions[i]

		switch gv.ID {
		case game:
			return gv.Loaders, true
		case GameVersionPlaceholder:
			fallback = gv
		}
	}

	if fallback != nil {
		return fallback.Loaders, true
	}

	return nil, false
}

// Pick selects the build named by requested. The first listed build is the
// newest; forge style ids of the form <game>-<version> match on either.
func Pick(game string, versions []Version, requested string) (*Version, bool) {
	if len(versions) == 0 {
		return nil, false
	}

	switch requested {
	case "", Latest:
		return &versions[0], true
	case Stable:
		for i := range versions {
			if versions[i].Stable {
				return &versions[i], true
			}
		}

		return &versions[0], true
	}

	for i := range versions {
		id := versions[i].ID

		if id == requested || id == game+"-"+requested {
			return &versions[i], true
		}

		if strings.TrimPrefix(requested, game+"-") == id {
			return &versions[i], true
		}
	}

	return nil, false
}

type MetaResolver struct {
	BaseURL string
	Fetcher *fetch.Fetcher
	L       hclog.Logger
}

func (r *MetaResolver) logger() hclog.Logger {
	if r.L == nil {
		return hclog.L()
	}

	return r.L
}

func (r *MetaResolver) manifestURL(l pack.Loader) string {
	base := r.BaseURL
	if base == "" {
		base = DefaultMetaURL
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return base + string(l) + "/v0/manifest.json"
}

// ResolveLoaderVersion returns the concrete loader version id. Vanilla
// installs have no loader and resolve to the empty string.
func (r *MetaResolver) ResolveLoaderVersion(ctx context.Context, game string, l pack.Loader, requested string) (string, error) {
	switch l {
	case pack.Vanilla, "":
		return "", nil
	case pack.Forge, pack.NeoForge, pack.Fabric, pack.Quilt:
	default:
		return "", errors.Wrapf(ErrUnsupportedLoader, "loader: %s", l)
	}

	var m Manifest

	err := r.Fetcher.JSON(ctx, r.manifestURL(l), &m)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s metadata", l)
	}

	versions, ok := m.Find(game)
	if !ok {
		return "", errors.Wrapf(ErrNoGameVersion, "%s for minecraft %s", l, game)
	}

	v, ok := Pick(game, versions, requested)
	if !ok {
		return "", errors.Wrapf(ErrNoLoaderVersion, "%s %s for minecraft %s", l, requested, game)
	}

	r.logger().Debug("resolved loader version", "loader", l, "requested", requested, "version", v.ID)

	return v.ID, nil
}

// Static resolves every request to the requested string itself. It is
// used when installing offline.
type Static struct{}

func (Static) ResolveLoaderVersion(ctx context.Context, game string, l pack.Loader, requested string) (string, error) {
	if l == pack.Vanilla || l == "" {
		return "", nil
	}

	return requested, nil
}
