package modrinth

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/progress"
)

// Shares of the resolve stage, out of 100.
const (
	versionShare = 15
	archiveShare = 65
	projectShare = 10
	iconShare    = 10
)

type Resolved struct {
	Version *Version
	Project *Project
	File    *VersionFile
	Archive []byte

	// Icon is the cached icon path, empty when the project has none or it
	// could not be retrieved.
	Icon string
}

type Resolver struct {
	Client *Client
	Icons  *IconCache
	L      hclog.Logger
}

func (r *Resolver) logger() hclog.Logger {
	if r.L == nil {
		return hclog.L()
	}

	return r.L
}

// Resolve fetches the version, downloads and verifies its pack archive,
// then loads the project for title and icon. tr is credited 100 units
// across the steps. Icon failures are logged and otherwise ignored.
func (r *Resolver) Resolve(ctx context.Context, projectID, versionID string, tr progress.Tracker) (*Resolved, error) {
	if tr == nil {
		tr = progress.New("", "", 100, nil)
	}

	tr.Add(0, "Fetching version")

	v, err := r.Client.Version(ctx, versionID)
	if err != nil {
		return nil, err
	}

	tr.Add(versionShare, "")

	file, err := v.PrimaryFile()
	if err != nil {
		return nil, err
	}

	r.logger().Debug("downloading pack archive", "version", v.ID, "url", file.URL)

	archive, err := r.Client.Fetcher.Fetch(ctx, file.URL, fetch.Options{
		Checksum: fetch.SHA1(file.Hashes["sha1"]),
		Progress: tr,
		Units:    archiveShare,
		Message:  "Fetching project metadata",
	})
	if err != nil {
		return nil, err
	}

	if v.ProjectID != "" {
		projectID = v.ProjectID
	}

	p, err := r.Client.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tr.Add(projectShare, "Retrieving icon")

	res := &Resolved{
		Version: v,
		Project: p,
		File:    file,
		Archive: archive,
	}

	if p.IconURL != "" && r.Icons != nil {
		icon, err := r.Icons.Get(ctx, p.IconURL)
		if err != nil {
			r.logger().Warn("unable to retrieve pack icon, continuing without it", "url", p.IconURL, "error", err)
		} else {
			res.Icon = icon
		}
	}

	tr.Add(iconShare, "")

	return res, nil
}
