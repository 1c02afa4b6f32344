package pack

import "github.com/pkg/errors"

// ErrInvalidInput is the root of every error caused by bad caller or pack
// data. Errors of this kind are never retried.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrInvalidManifest        = errors.Wrap(ErrInvalidInput, "invalid pack manifest")
	ErrUnsupportedGame        = errors.Wrap(ErrInvalidInput, "pack does not support minecraft")
	ErrMissingPlatformVersion = errors.Wrap(ErrInvalidInput, "pack did not specify a minecraft version")
)
