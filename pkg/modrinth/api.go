// Package modrinth resolves a remote pack reference, a project id plus a
// version id, into the pack archive and the metadata shown for it.
package modrinth

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/pack"
)

const DefaultBaseURL = "https://api.modrinth.com/v2/"

var ErrMissingArtifact = errors.Wrap(pack.ErrInvalidInput, "specified version has no files")

type VersionFile struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Hashes   map[string]string `json:"hashes"`
	Size     int64             `json:"size"`
}

type Version struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	Name          string        `json:"name"`
	VersionNumber string        `json:"version_number"`
	Files         []VersionFile `json:"files"`
}

// PrimaryFile picks the file to download: the one flagged primary, else
// the first listed.
func (v *Version) PrimaryFile() (*VersionFile, error) {
	if len(v.Files) == 0 {
		return nil, errors.Wrapf(ErrMissingArtifact, "version: %s", v.ID)
	}

	for i := range v.Files {
		if v.Files[i].Primary {
			return &v.Files[i], nil
		}
	}

	return &v.Files[0], nil
}

type Project struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	IconURL string `json:"icon_url"`
}

type Client struct {
	BaseURL string
	Fetcher *fetch.Fetcher
}

func (c *Client) endpoint(parts ...string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return base + strings.Join(parts, "/")
}

func (c *Client) Version(ctx context.Context, id string) (*Version, error) {
	var v Version

	err := c.Fetcher.JSON(ctx, c.endpoint("version", id), &v)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching version %s", id)
	}

	return &v, nil
}

func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var p Project

	err := c.Fetcher.JSON(ctx, c.endpoint("project", id), &p)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching project %s", id)
	}

	return &p, nil
}
