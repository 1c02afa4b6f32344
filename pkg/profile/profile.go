// Package profile stores installation targets: one directory per profile
// with its metadata kept in profile.json.
package profile

import (
	"lab47.dev/mrinstall/pkg/pack"
)

const MetadataFile = "profile.json"

// Stage tracks how far an install into a profile has progressed.
type Stage string

const (
	Staging    Stage = "staging"
	Installing Stage = "installing"
	Installed  Stage = "installed"
)

var transitions = map[Stage]Stage{
	Staging:    Installing,
	Installing: Installed,
}

// CanMoveTo reports whether a profile in stage s may advance to next.
func (s Stage) CanMoveTo(next Stage) bool {
	return s == next || transitions[s] == next
}

type LinkedData struct {
	ProjectID string `json:"project_id,omitempty"`
	VersionID string `json:"version_id,omitempty"`
}

type Metadata struct {
	Name          string      `json:"name"`
	Icon          string      `json:"icon,omitempty"`
	GameVersion   string      `json:"game_version"`
	Loader        pack.Loader `json:"loader"`
	LoaderVersion string      `json:"loader_version,omitempty"`
	Linked        *LinkedData `json:"linked_data,omitempty"`
}

type Profile struct {
	Path     string   `json:"-"`
	Stage    Stage    `json:"install_stage"`
	Metadata Metadata `json:"metadata"`
}

func (p *Profile) clone() *Profile {
	c := *p

	if p.Metadata.Linked != nil {
		l := *p.Metadata.Linked
		c.Metadata.Linked = &l
	}

	return &c
}

// Patch lists the fields an edit changes. Nil fields are left alone.
type Patch struct {
	Name          *string
	Icon          *string
	Stage         *Stage
	GameVersion   *string
	Loader        *pack.Loader
	LoaderVersion *string
	Linked        *LinkedData
}

func Ptr[T any](v T) *T {
	return &v
}

func (pt *Patch) apply(p *Profile) {
	if pt.Name != nil {
		p.Metadata.Name = *pt.Name
	}

	if pt.Icon != nil {
		p.Metadata.Icon = *pt.Icon
	}

	if pt.Stage != nil {
		p.Stage = *pt.Stage
	}

	if pt.GameVersion != nil {
		p.Metadata.GameVersion = *pt.GameVersion
	}

	if pt.Loader != nil {
		p.Metadata.Loader = *pt.Loader
	}

	if pt.LoaderVersion != nil {
		p.Metadata.LoaderVersion = *pt.LoaderVersion
	}

	if pt.Linked != nil {
		l := *pt.Linked
		p.Metadata.Linked = &l
	}
}
