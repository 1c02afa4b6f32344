package install

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/pack"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
	"lab47.dev/mrinstall/pkg/sumfile"
)

const (
	OverridesDir       = "overrides/"
	ClientOverridesDir = "client_overrides/"
)

// Shares of an extraction, out of 100.
const (
	metadataShare  = 10
	filesShare     = 55
	overridesShare = 20
	postShare      = 15
)

// ExtractOptions carries what the caller already knows about the pack.
type ExtractOptions struct {
	// Name replaces the manifest name when set.
	Name   string
	Icon   string
	Linked *profile.LinkedData
}

// Extractor installs a pack archive into a staged profile.
type Extractor struct {
	common

	env *Env
}

func NewExtractor(env *Env) *Extractor {
	return &Extractor{env: env}
}

// OpenArchive opens data as a zip and parses its manifest.
func OpenArchive(data []byte) (*zip.Reader, *pack.Manifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, errors.Wrapf(ErrCorruptArchive, "%s", err)
	}

	var index *zip.File

	for _, f := range zr.File {
		if f.Name == pack.IndexName {
			index = f
			break
		}
	}

	if index == nil {
		return nil, nil, errors.Wrapf(ErrMissingManifest, "looking for %s", pack.IndexName)
	}

	raw, err := readEntry(index)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrCorruptArchive, "reading %s: %s", pack.IndexName, err)
	}

	m, err := pack.Parse(raw)
	if err != nil {
		return nil, nil, err
	}

	return zr, m, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}

	defer r.Close()

	return io.ReadAll(r)
}

// extraction is the state of one Extract call.
type extraction struct {
	*Extractor

	fs billy.Filesystem

	mu      sync.Mutex
	receipt sumfile.Sumfile
}

// Extract installs the archive into p, which must be in the Staging stage.
// tr is credited 100 units over the course of the extraction. The
// returned profile reflects the metadata written during resolution.
func (x *Extractor) Extract(ctx context.Context, data []byte, p *profile.Profile, opts ExtractOptions, tr progress.Tracker) (*profile.Profile, error) {
	if tr == nil {
		tr = progress.New("", "", 100, nil)
	}

	tr.Add(0, "Reading pack manifest")

	zr, m, err := OpenArchive(data)
	if err != nil {
		return nil, err
	}

	err = m.CheckGame()
	if err != nil {
		return nil, err
	}

	game, err := m.GameVersion()
	if err != nil {
		return nil, err
	}

	kind, requested := m.Loader()

	loaderVersion, err := x.env.loaders().ResolveLoaderVersion(ctx, game, kind, requested)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = m.Name
	}

	patch := profile.Patch{
		Name:          &name,
		Stage:         profile.Ptr(profile.Installing),
		GameVersion:   &game,
		Loader:        &kind,
		LoaderVersion: &loaderVersion,
		Linked:        opts.Linked,
	}

	if opts.Icon != "" {
		patch.Icon = &opts.Icon
	}

	p, err = x.env.Store.Edit(ctx, p.Path, patch)
	if err != nil {
		return nil, err
	}

	x.L().Debug("resolved pack",
		"name", name, "minecraft", game, "loader", kind, "loader-version", loaderVersion,
		"files", len(m.Files))

	tr.Add(metadataShare, "Downloading mods")

	ex := &extraction{
		Extractor: x,
		fs:        osfs.New(p.Path),
	}

	err = ex.installFiles(ctx, m, progress.Sub(tr, filesShare, fileUnits(m)))
	if err != nil {
		return nil, err
	}

	err = ex.extractOverrides(ctx, zr, progress.Sub(tr, overridesShare, float64(countOverrides(zr))))
	if err != nil {
		return nil, err
	}

	err = ex.writeReceipt()
	if err != nil {
		return nil, err
	}

	tr.Add(0, "Installing game files")

	err = x.env.postInstall().InstallRuntime(ctx, p, progress.Sub(tr, postShare, 100))
	if err != nil {
		return nil, err
	}

	return p, nil
}

// fileUnits is the unit count of the file download phase: declared bytes
// when the pack declares sizes, else one unit per file.
func fileUnits(m *pack.Manifest) float64 {
	if total := m.TotalSize(); total > 0 {
		return float64(total)
	}

	return float64(len(m.Files))
}

func (ex *extraction) installFiles(ctx context.Context, m *pack.Manifest, tr *progress.Span) error {
	bySize := m.TotalSize() > 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.env.workers())

	for i := range m.Files {
		f := &m.Files[i]

		if f.ClientUnsupported() {
			ex.L().Trace("skipping server only file", "path", f.Path)
			continue
		}

		name, ok := pack.NormalizePath(f.Path)
		if !ok {
			ex.L().Warn("skipping pack file with unsafe path", "path", f.Path)
			continue
		}

		if reserved(name) {
			ex.L().Warn("skipping pack file with reserved name", "path", name)
			continue
		}

		if ctx.Err() != nil {
			break
		}

		units := 1.0
		if bySize {
			units = float64(f.FileSize)
		}

		g.Go(func() error {
			var sum *fetch.Checksum

			if algo, v, ok := f.Checksum(); ok {
				sum = &fetch.Checksum{Algo: string(algo), Value: v}
			}

			data, err := ex.env.Fetcher.Mirrors(ctx, f.Downloads, fetch.Options{Checksum: sum})
			if err != nil {
				return errors.Wrapf(err, "installing %s", name)
			}

			err = ex.write(ctx, name, data)
			if err != nil {
				return err
			}

			tr.Add(units, "")

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return err
	}

	tr.Finish("Extracting overrides")

	return nil
}

// overrideName maps an archive entry to its destination inside the
// profile. Directory markers and unsafe paths have none.
func overrideName(entry string) (string, bool) {
	var rest string

	switch {
	case strings.HasPrefix(entry, OverridesDir):
		rest = entry[len(OverridesDir):]
	case strings.HasPrefix(entry, ClientOverridesDir):
		rest = entry[len(ClientOverridesDir):]
	default:
		return "", false
	}

	if rest == "" || strings.HasSuffix(rest, "/") {
		return "", false
	}

	return pack.NormalizePath(rest)
}

func overrideEntries(zr *zip.Reader) []*zip.File {
	var shared, client []*zip.File

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		if _, ok := overrideName(f.Name); !ok {
			continue
		}

		if strings.HasPrefix(f.Name, ClientOverridesDir) {
			client = append(client, f)
		} else {
			shared = append(shared, f)
		}
	}

	// Client specific files are written last so they replace common ones.
	return append(shared, client...)
}

func countOverrides(zr *zip.Reader) int {
	return len(overrideEntries(zr))
}

func (ex *extraction) extractOverrides(ctx context.Context, zr *zip.Reader, tr *progress.Span) error {
	entries := overrideEntries(zr)

	for i, f := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, _ := overrideName(f.Name)

		data, err := readEntry(f)
		if err != nil {
			return errors.Wrapf(ErrCorruptArchive, "reading %s: %s", f.Name, err)
		}

		err = ex.write(ctx, name, data)
		if err != nil {
			return err
		}

		ex.L().Trace("extracted override", "entry", f.Name, "path", name)

		tr.Add(1, fmt.Sprintf("Extracting override %d/%d", i+1, len(entries)))
	}

	tr.Finish("")

	return nil
}

// reserved reports whether name is a file the store or the receipt owns.
// Packs never get to write those.
func reserved(name string) bool {
	return strings.EqualFold(name, ReceiptName) || profile.Reserved(name)
}

func (ex *extraction) write(ctx context.Context, name string, data []byte) error {
	if reserved(name) {
		ex.L().Warn("skipping pack file with reserved name", "path", name)
		return nil
	}

	if ex.env.Writes != nil {
		err := ex.env.Writes.Acquire(ctx, 1)
		if err != nil {
			return err
		}

		defer ex.env.Writes.Release(1)
	}

	err := util.WriteFile(ex.fs, name, data, 0644)
	if err != nil {
		return errors.Wrapf(err, "writing %s", name)
	}

	ex.mu.Lock()
	ex.receipt.Add(name, sumfile.Blake2b, sumfile.Sum(data))
	ex.mu.Unlock()

	return nil
}

func (ex *extraction) writeReceipt() error {
	f, err := ex.fs.Create(ReceiptName)
	if err != nil {
		return track(err)
	}

	defer f.Close()

	ex.mu.Lock()
	defer ex.mu.Unlock()

	err = ex.receipt.Save(f)
	if err != nil {
		return errors.Wrapf(err, "writing %s", ReceiptName)
	}

	return f.Close()
}
