package install

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
)

// Shares of a whole install, out of 100.
const (
	remoteShare  = 30
	readShare    = 5
	extractShare = 65
)

const defaultName = "Modpack"

var ErrNoResolver = errors.New("no remote resolver configured")

// Coordinator runs complete installs. Every install happens in a staged
// profile that is removed again if any step fails, so callers only ever
// see a fully installed profile or an error.
type Coordinator struct {
	common

	env *Env
	x   *Extractor
}

func NewCoordinator(env *Env) *Coordinator {
	return &Coordinator{env: env, x: NewExtractor(env)}
}

func (c *Coordinator) SetLogger(L hclog.Logger) {
	c.common.SetLogger(L)
	c.x.SetLogger(L)
}

// source produces the archive bytes for an install, crediting tr with
// its share.
type source func(ctx context.Context, tr progress.Tracker) ([]byte, ExtractOptions, error)

func (c *Coordinator) run(ctx context.Context, title string, linked *profile.LinkedData, share float64, src source) (string, error) {
	bar := progress.New(title, title, 100, c.env.sink(title, title))

	st, err := Stage(c.env.Store, profile.CreateOptions{Name: title, Linked: linked}, c.L())
	if err != nil {
		return "", err
	}

	defer st.Release()

	bar.Add(0, "Creating profile")

	data, opts, err := src(ctx, progress.Sub(bar, share, 100))
	if err != nil {
		return "", err
	}

	p, err := c.x.Extract(ctx, data, st.Profile(), opts, progress.Sub(bar, 100-share, 100))
	if err != nil {
		return "", err
	}

	_, err = c.env.Store.Edit(ctx, p.Path, profile.Patch{Stage: profile.Ptr(profile.Installed)})
	if err != nil {
		return "", err
	}

	st.Commit()
	bar.Done()

	c.L().Info("installed pack", "name", p.Metadata.Name, "path", p.Path)

	return p.Path, nil
}

// InstallFromVersion installs the pack published as versionID of
// projectID and returns the new profile's path.
func (c *Coordinator) InstallFromVersion(ctx context.Context, projectID, versionID string) (string, error) {
	if c.env.Remote == nil {
		return "", ErrNoResolver
	}

	linked := &profile.LinkedData{ProjectID: projectID, VersionID: versionID}

	return c.run(ctx, projectID, linked, remoteShare, func(ctx context.Context, tr progress.Tracker) ([]byte, ExtractOptions, error) {
		res, err := c.env.Remote.Resolve(ctx, projectID, versionID, tr)
		if err != nil {
			return nil, ExtractOptions{}, err
		}

		linked := &profile.LinkedData{ProjectID: res.Project.ID, VersionID: res.Version.ID}
		if linked.ProjectID == "" {
			linked.ProjectID = projectID
		}

		return res.Archive, ExtractOptions{
			Name:   res.Project.Title,
			Icon:   res.Icon,
			Linked: linked,
		}, nil
	})
}

// InstallFromFile installs a pack archive from the local filesystem.
func (c *Coordinator) InstallFromFile(ctx context.Context, path string) (string, error) {
	return c.run(ctx, titleFor(path), nil, readShare, func(ctx context.Context, tr progress.Tracker) ([]byte, ExtractOptions, error) {
		tr.Add(0, "Reading pack archive")

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ExtractOptions{}, track(err)
		}

		tr.Add(100, "")

		return data, ExtractOptions{}, nil
	})
}

// InstallFromURL downloads a pack archive from any source go-getter
// understands (http, s3, gcs, local paths...) and installs it.
func (c *Coordinator) InstallFromURL(ctx context.Context, src, title string) (string, error) {
	if title == "" {
		title = titleFor(src)
	}

	return c.run(ctx, title, nil, remoteShare, func(ctx context.Context, tr progress.Tracker) ([]byte, ExtractOptions, error) {
		tr.Add(0, "Downloading pack archive")

		data, err := c.download(ctx, src)
		if err != nil {
			return nil, ExtractOptions{}, err
		}

		tr.Add(100, "")

		return data, ExtractOptions{}, nil
	})
}

func (c *Coordinator) download(ctx context.Context, src string) ([]byte, error) {
	if c.env.Transfers != nil {
		err := c.env.Transfers.Acquire(ctx, 1)
		if err != nil {
			return nil, err
		}

		defer c.env.Transfers.Release(1)
	}

	dir, err := os.MkdirTemp("", "mrinstall")
	if err != nil {
		return nil, track(err)
	}

	defer os.RemoveAll(dir)

	pwd, err := os.Getwd()
	if err != nil {
		return nil, track(err)
	}

	dst := filepath.Join(dir, "pack.mrpack")

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,

		// The pack is a zip, but it must reach us unexpanded.
		Decompressors: map[string]getter.Decompressor{},
	}

	c.L().Debug("downloading pack archive", "source", src)

	err = client.Get()
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", src)
	}

	return os.ReadFile(dst)
}

func titleFor(src string) string {
	if idx := strings.IndexAny(src, "?#"); idx != -1 {
		src = src[:idx]
	}

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))

	switch name {
	case "", ".", "/":
		return defaultName
	}

	return name
}
