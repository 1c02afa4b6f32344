// Package gamefiles installs the base game files a profile needs once its
// pack contents are in place.
package gamefiles

import (
	"context"
	"path"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
)

const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

var ErrUnknownVersion = errors.New("unknown game version")

type Installer interface {
	InstallRuntime(ctx context.Context, p *profile.Profile, tr progress.Tracker) error
}

// Noop installs nothing. It credits the tracker so progress still
// completes.
type Noop struct{}

func (Noop) InstallRuntime(ctx context.Context, p *profile.Profile, tr progress.Tracker) error {
	if tr != nil {
		tr.Add(100, "")
	}

	return nil
}

type VersionRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`

	Versions []VersionRef `json:"versions"`
}

func (m *VersionManifest) Find(id string) (*VersionRef, bool) {
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i], true
		}
	}

	return nil, false
}

// MetadataInstaller writes the version description of the profile's game
// version to versions/<id>/<id>.json inside the profile, which is what a
// launcher reads to assemble the game.
type MetadataInstaller struct {
	ManifestURL string
	Fetcher     *fetch.Fetcher
	Writes      *semaphore.Weighted
	L           hclog.Logger
}

func (m *MetadataInstaller) logger() hclog.Logger {
	if m.L == nil {
		return hclog.L()
	}

	return m.L
}

// VersionPath is the profile relative location of the version json.
func VersionPath(id string) string {
	return path.Join("versions", id, id+".json")
}

// InstallRuntime credits tr with 100 units spread over its two fetches.
func (m *MetadataInstaller) InstallRuntime(ctx context.Context, p *profile.Profile, tr progress.Tracker) error {
	if tr == nil {
		tr = progress.New("", "", 100, nil)
	}

	url := m.ManifestURL
	if url == "" {
		url = DefaultManifestURL
	}

	tr.Add(0, "Fetching game version manifest")

	var vm VersionManifest

	err := m.Fetcher.JSON(ctx, url, &vm)
	if err != nil {
		return errors.Wrapf(err, "fetching version manifest")
	}

	tr.Add(20, "")

	game := p.Metadata.GameVersion

	ref, ok := vm.Find(game)
	if !ok {
		return errors.Wrapf(ErrUnknownVersion, "minecraft %s", game)
	}

	data, err := m.Fetcher.Fetch(ctx, ref.URL, fetch.Options{
		Checksum: fetch.SHA1(ref.SHA1),
		Progress: tr,
		Units:    60,
		Message:  "Writing game metadata",
	})
	if err != nil {
		return err
	}

	if m.Writes != nil {
		err = m.Writes.Acquire(ctx, 1)
		if err != nil {
			return err
		}

		defer m.Writes.Release(1)
	}

	target := VersionPath(ref.ID)

	err = util.WriteFile(osfs.New(p.Path), target, data, 0644)
	if err != nil {
		return errors.Wrapf(err, "writing %s", target)
	}

	m.logger().Debug("installed game metadata", "profile", p.Path, "version", ref.ID)

	tr.Add(20, "")

	return nil
}
