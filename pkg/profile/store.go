package profile

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/mrinstall/pkg/lockfile"
	"lab47.dev/mrinstall/pkg/pack"
)

var (
	ErrNotFound          = errors.New("no such profile")
	ErrInvalidTransition = errors.New("invalid install stage transition")
)

// Edit lockfiles live beside the profiles, never inside them, so nothing
// an install writes into a profile can collide with one.
const lockDir = ".locks"

type Store struct {
	root string
	L    hclog.Logger

	mu       sync.Mutex
	profiles map[string]*Profile
	edits    map[string]*sync.Mutex
}

// Open loads every profile found directly under root, creating root if
// needed.
func Open(root string, L hclog.Logger) (*Store, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(root, 0755)
	if err != nil {
		return nil, err
	}

	if L == nil {
		L = hclog.L()
	}

	s := &Store{
		root:     root,
		L:        L,
		profiles: make(map[string]*Profile),
		edits:    make(map[string]*sync.Mutex),
	}

	entries, err := ioutil.ReadDir(root)
	if err != nil {
		return nil, err
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		path := filepath.Join(root, ent.Name())

		p, err := readProfile(path)
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				L.Warn("skipping unreadable profile", "path", path, "error", err)
			}
			continue
		}

		s.profiles[path] = p
	}

	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

func readProfile(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(filepath.Join(path, MetadataFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var p Profile

	err = json.Unmarshal(data, &p)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", MetadataFile)
	}

	p.Path = path

	return &p, nil
}

const tempPattern = ".profile-*.json"

// Reserved reports whether name, relative to a profile directory, is a
// file the store itself manages.
func Reserved(name string) bool {
	if strings.EqualFold(name, MetadataFile) {
		return true
	}

	lower := strings.ToLower(name)

	return strings.HasPrefix(lower, ".profile-") && strings.HasSuffix(lower, ".json")
}

func writeProfile(p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := ioutil.TempFile(p.Path, tempPattern)
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(p.Path, MetadataFile))
}

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

func dirName(name string) string {
	name = strings.TrimSpace(unsafeChars.Replace(name))
	name = strings.Trim(name, ".")

	if name == "" {
		return "profile"
	}

	return name
}

type CreateOptions struct {
	Name          string
	GameVersion   string
	Loader        pack.Loader
	LoaderVersion string
	Icon          string
	Linked        *LinkedData
}

// CreateStaging makes a new profile directory in the Staging stage. The
// directory name derives from opts.Name, suffixed to stay unique.
func (s *Store) CreateStaging(opts CreateOptions) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := dirName(opts.Name)
	path := filepath.Join(s.root, base)

	for i := 2; ; i++ {
		err := os.Mkdir(path, 0755)
		if err == nil {
			break
		}

		if !os.IsExist(err) {
			return nil, err
		}

		path = filepath.Join(s.root, base+"-"+strconv.Itoa(i))
	}

	loader := opts.Loader
	if loader == "" {
		loader = pack.Vanilla
	}

	p := &Profile{
		Path:  path,
		Stage: Staging,
		Metadata: Metadata{
			Name:          opts.Name,
			Icon:          opts.Icon,
			GameVersion:   opts.GameVersion,
			Loader:        loader,
			LoaderVersion: opts.LoaderVersion,
		},
	}

	if opts.Linked != nil {
		l := *opts.Linked
		p.Metadata.Linked = &l
	}

	err := writeProfile(p)
	if err != nil {
		os.RemoveAll(path)
		return nil, err
	}

	s.profiles[path] = p

	s.L.Debug("created staging profile", "path", path, "name", opts.Name)

	return p.clone(), nil
}

// Edit applies patch to the profile at path as one read-modify-write.
// Edits of one profile are serialized within the process by a per-profile
// mutex and across processes by a lockfile under the store root. The store
// lock is only held once both are taken, so waiting on another process
// never blocks readers.
func (s *Store) Edit(ctx context.Context, path string, patch Patch) (*Profile, error) {
	mu, err := s.editLock(path)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	err = os.MkdirAll(filepath.Join(s.root, lockDir), 0755)
	if err != nil {
		return nil, err
	}

	var waited bool

	release, err := lockfile.Take(ctx, s.lockPath(path), func() {
		if !waited {
			waited = true
			s.L.Info("waiting for another process to finish editing the profile", "path", path)
		}
	})
	if err != nil {
		return nil, err
	}

	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[path]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "path: %s", path)
	}

	next := cur.clone()
	patch.apply(next)

	if !cur.Stage.CanMoveTo(next.Stage) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", cur.Stage, next.Stage)
	}

	err = writeProfile(next)
	if err != nil {
		return nil, err
	}

	s.profiles[path] = next

	return next.clone(), nil
}

func (s *Store) editLock(path string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[path]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "path: %s", path)
	}

	mu, ok := s.edits[path]
	if !ok {
		mu = new(sync.Mutex)
		s.edits[path] = mu
	}

	return mu, nil
}

func (s *Store) lockPath(path string) string {
	return filepath.Join(s.root, lockDir, filepath.Base(path)+".lock")
}

// Remove deletes the profile and its directory.
func (s *Store) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[path]; !ok {
		return errors.Wrapf(ErrNotFound, "path: %s", path)
	}

	delete(s.profiles, path)
	delete(s.edits, path)

	s.L.Debug("removing profile", "path", path)

	return os.RemoveAll(path)
}

func (s *Store) Get(path string) (*Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[path]
	if !ok {
		return nil, false
	}

	return p.clone(), true
}

// Lookup finds a profile by path or by directory name under the root.
func (s *Store) Lookup(ref string) (*Profile, bool) {
	if p, ok := s.Get(ref); ok {
		return p, true
	}

	if abs, err := filepath.Abs(ref); err == nil {
		if p, ok := s.Get(abs); ok {
			return p, true
		}
	}

	return s.Get(filepath.Join(s.root, ref))
}

func (s *Store) List() []*Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Profile

	for _, p := range s.profiles {
		out = append(out, p.clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})

	return out
}
