package install

import "github.com/pkg/errors"

var (
	ErrCorruptArchive  = errors.New("pack archive is not a readable zip")
	ErrMissingManifest = errors.New("pack archive has no manifest")
)

func track(err error) error {
	return errors.WithStack(err)
}
