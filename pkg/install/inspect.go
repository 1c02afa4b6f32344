package install

import "lab47.dev/mrinstall/pkg/pack"

type Summary struct {
	Manifest *pack.Manifest

	// Overrides lists the profile relative paths the archive's overrides
	// would be written to, in extraction order.
	Overrides []string
}

// Inspect reads a pack archive without installing anything.
func Inspect(data []byte) (*Summary, error) {
	zr, m, err := OpenArchive(data)
	if err != nil {
		return nil, err
	}

	s := &Summary{Manifest: m}

	for _, f := range overrideEntries(zr) {
		name, _ := overrideName(f.Name)
		if reserved(name) {
			continue
		}

		s.Overrides = append(s.Overrides, name)
	}

	return s, nil
}
