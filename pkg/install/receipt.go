package install

import (
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"lab47.dev/mrinstall/pkg/sumfile"
)

// ReceiptName is the file, at the root of an installed profile, recording
// the digest of every file the install wrote.
const ReceiptName = ".mrinstall.sum"

var ErrNoReceipt = errors.New("profile has no install receipt")

type DriftKind string

const (
	Missing  DriftKind = "missing"
	Modified DriftKind = "modified"
)

type Drift struct {
	Path string
	Kind DriftKind
}

func LoadReceipt(dir string) (*sumfile.Sumfile, error) {
	fs := osfs.New(dir)

	f, err := fs.Open(ReceiptName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoReceipt, "profile: %s", dir)
		}

		return nil, track(err)
	}

	defer f.Close()

	var sf sumfile.Sumfile

	err = sf.Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", ReceiptName)
	}

	return &sf, nil
}

// Verify recomputes the digest of every file in the receipt of the profile
// at dir and reports the ones that no longer match.
func Verify(dir string) ([]Drift, error) {
	sf, err := LoadReceipt(dir)
	if err != nil {
		return nil, err
	}

	fs := osfs.New(dir)

	var drift []Drift

	for _, ent := range sf.Entries() {
		f, err := fs.Open(ent.Path)
		if err != nil {
			if os.IsNotExist(err) {
				drift = append(drift, Drift{Path: ent.Path, Kind: Missing})
				continue
			}

			return nil, track(err)
		}

		h, err := sumfile.SumReader(f)
		f.Close()

		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", ent.Path)
		}

		if ent.Algo != sumfile.Blake2b || string(h) != string(ent.Hash) {
			drift = append(drift, Drift{Path: ent.Path, Kind: Modified})
		}
	}

	return drift, nil
}
