package install

import (
	"github.com/hashicorp/go-hclog"
	"lab47.dev/mrinstall/pkg/profile"
)

// Staged holds a profile created for an install in progress. Release
// removes the profile unless Commit was called first, so the usual shape
// is:
//
//	st, err := Stage(store, opts, L)
//	...
//	defer st.Release()
//	...
//	st.Commit()
type Staged struct {
	store     *profile.Store
	profile   *profile.Profile
	committed bool
	L         hclog.Logger
}

func Stage(store *profile.Store, opts profile.CreateOptions, L hclog.Logger) (*Staged, error) {
	p, err := store.CreateStaging(opts)
	if err != nil {
		return nil, err
	}

	return &Staged{store: store, profile: p, L: L}, nil
}

func (s *Staged) Profile() *profile.Profile {
	return s.profile
}

func (s *Staged) Path() string {
	return s.profile.Path
}

func (s *Staged) Commit() {
	s.committed = true
}

func (s *Staged) Release() {
	if s.committed {
		return
	}

	s.L.Debug("removing partially installed profile", "path", s.profile.Path)

	err := s.store.Remove(s.profile.Path)
	if err != nil {
		s.L.Error("unable to remove partially installed profile", "path", s.profile.Path, "error", err)
	}
}
