// Package sumfile reads and writes digest listings, one entry per line in
// the form "algo:base58digest path".
package sumfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Blake2b is the algorithm tag for Sum digests.
const Blake2b = "b2"

var ErrMalformed = errors.New("malformed sumfile line")

type Entry struct {
	Path string
	Algo string
	Hash []byte
}

func (e Entry) String() string {
	return e.Algo + ":" + base58.Encode(e.Hash)
}

type Sumfile struct {
	entries []Entry
}

// Sum returns the blake2b-256 digest of data.
func Sum(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

// SumReader digests everything read from r.
func SumReader(r io.Reader) ([]byte, error) {
	h, _ := blake2b.New256(nil)

	_, err := io.Copy(h, r)
	if err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func (s *Sumfile) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	for lineno := 1; ; lineno++ {
		line, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}

		done := err == io.EOF

		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			ent, perr := parseLine(line)
			if perr != nil {
				return errors.Wrapf(perr, "line %d", lineno)
			}

			s.Add(ent.Path, ent.Algo, ent.Hash)
		}

		if done {
			break
		}
	}

	return nil
}

func parseLine(line []byte) (Entry, error) {
	colon := bytes.IndexByte(line, ':')
	space := bytes.IndexByte(line, ' ')

	if colon == -1 || space == -1 || space < colon {
		return Entry{}, ErrMalformed
	}

	b, err := base58.Decode(string(line[colon+1 : space]))
	if err != nil {
		return Entry{}, errors.Wrapf(ErrMalformed, "%s", err)
	}

	return Entry{
		Algo: string(line[:colon]),
		Hash: b,
		Path: string(bytes.TrimSpace(line[space+1:])),
	}, nil
}

// Add records a digest for path, replacing any earlier entry for it.
func (s *Sumfile) Add(path, algo string, h []byte) string {
	idx := s.search(path)

	ent := Entry{Path: path, Algo: algo, Hash: h}

	if idx < len(s.entries) && s.entries[idx].Path == path {
		s.entries[idx] = ent
	} else {
		s.entries = append(s.entries, Entry{})
		copy(s.entries[idx+1:], s.entries[idx:])
		s.entries[idx] = ent
	}

	return ent.String()
}

func (s *Sumfile) search(path string) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Path >= path
	})
}

func (s *Sumfile) Save(w io.Writer) error {
	for _, ent := range s.entries {
		_, err := fmt.Fprintf(w, "%s %s\n", ent.String(), ent.Path)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Sumfile) Lookup(path string) (string, []byte, bool) {
	idx := s.search(path)

	if idx < len(s.entries) && s.entries[idx].Path == path {
		return s.entries[idx].Algo, s.entries[idx].Hash, true
	}

	return "", nil, false
}

func (s *Sumfile) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

func (s *Sumfile) Len() int {
	return len(s.entries)
}
