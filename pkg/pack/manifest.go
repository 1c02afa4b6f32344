// Package pack models the modrinth pack index (modrinth.index.json) that
// sits at the root of every .mrpack archive.
package pack

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

const (
	// IndexName is the archive entry holding the manifest.
	IndexName = "modrinth.index.json"

	// Game is the only game identifier packs may target.
	Game = "minecraft"
)

type HashAlgorithm string

const (
	SHA1   HashAlgorithm = "sha1"
	SHA512 HashAlgorithm = "sha512"
)

// Known reports whether the algorithm is one we can verify. Unknown tags
// are still kept in the manifest so newer packs parse.
func (h HashAlgorithm) Known() bool {
	return h == SHA1 || h == SHA512
}

type EnvSide string

const (
	Client EnvSide = "client"
	Server EnvSide = "server"
)

type SupportLevel string

const (
	Required    SupportLevel = "required"
	Optional    SupportLevel = "optional"
	Unsupported SupportLevel = "unsupported"
)

type Dependency string

const (
	DepMinecraft    Dependency = "minecraft"
	DepForge        Dependency = "forge"
	DepNeoForge     Dependency = "neoforge"
	DepFabricLoader Dependency = "fabric-loader"
	DepQuiltLoader  Dependency = "quilt-loader"
)

type Loader string

const (
	Vanilla  Loader = "vanilla"
	Forge    Loader = "forge"
	NeoForge Loader = "neoforge"
	Fabric   Loader = "fabric"
	Quilt    Loader = "quilt"
)

var loaderDeps = map[Dependency]Loader{
	DepForge:        Forge,
	DepNeoForge:     NeoForge,
	DepFabricLoader: Fabric,
	DepQuiltLoader:  Quilt,
}

// Loader returns the mod loader a dependency key selects, if any.
func (d Dependency) Loader() (Loader, bool) {
	l, ok := loaderDeps[d]
	return l, ok
}

func (d Dependency) known() bool {
	if d == DepMinecraft {
		return true
	}

	_, ok := loaderDeps[d]
	return ok
}

type File struct {
	Path      string                   `json:"path"`
	Hashes    map[HashAlgorithm]string `json:"hashes"`
	Env       map[EnvSide]SupportLevel `json:"env,omitempty"`
	Downloads []string                 `json:"downloads"`
	FileSize  uint32                   `json:"fileSize"`
}

// ClientUnsupported is true when the file declares it must not be
// installed on the client.
func (f *File) ClientUnsupported() bool {
	if f.Env == nil {
		return false
	}

	return f.Env[Client] == Unsupported
}

// Checksum picks the hash used to verify the download, preferring sha1.
func (f *File) Checksum() (HashAlgorithm, string, bool) {
	for _, algo := range []HashAlgorithm{SHA1, SHA512} {
		if v, ok := f.Hashes[algo]; ok && v != "" {
			return algo, v, true
		}
	}

	return "", "", false
}

type Manifest struct {
	Game          string                `json:"game"`
	FormatVersion int                   `json:"formatVersion"`
	VersionID     string                `json:"versionId"`
	Name          string                `json:"name"`
	Summary       string                `json:"summary,omitempty"`
	Files         []File                `json:"files"`
	Dependencies  map[Dependency]string `json:"dependencies"`
}

// Parse decodes and structurally validates a manifest. It does not check
// the game or dependency values, see CheckGame and GameVersion.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest

	err := json.Unmarshal(data, &m)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidManifest, "decoding %s: %s", IndexName, err)
	}

	err = m.validate()
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	for i, f := range m.Files {
		if len(f.Downloads) == 0 {
			return errors.Wrapf(ErrInvalidManifest, "file %d (%s) lists no downloads", i, f.Path)
		}
	}

	var loaders []string

	for dep := range m.Dependencies {
		if !dep.known() {
			return errors.Wrapf(ErrInvalidManifest, "unknown dependency: %s", dep)
		}

		if _, ok := dep.Loader(); ok {
			loaders = append(loaders, string(dep))
		}
	}

	if len(loaders) > 1 {
		sort.Strings(loaders)
		return errors.Wrapf(ErrInvalidManifest, "multiple loaders declared: %v", loaders)
	}

	return nil
}

func (m *Manifest) CheckGame() error {
	if m.Game != Game {
		return errors.Wrapf(ErrUnsupportedGame, "game: %q", m.Game)
	}

	return nil
}

// GameVersion returns the minecraft version the pack is built for.
func (m *Manifest) GameVersion() (string, error) {
	v, ok := m.Dependencies[DepMinecraft]
	if !ok || v == "" {
		return "", ErrMissingPlatformVersion
	}

	return v, nil
}

// Loader returns the mod loader and the requested loader version. Packs
// without a loader dependency are vanilla.
func (m *Manifest) Loader() (Loader, string) {
	for dep, ver := range m.Dependencies {
		if l, ok := dep.Loader(); ok {
			return l, ver
		}
	}

	return Vanilla, ""
}

// TotalSize sums the declared size of every file, skipping ones the
// client does not install.
func (m *Manifest) TotalSize() int64 {
	var total int64

	for i := range m.Files {
		if m.Files[i].ClientUnsupported() {
			continue
		}

		total += int64(m.Files[i].FileSize)
	}

	return total
}
