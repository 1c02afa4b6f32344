// Package fetch downloads payloads from one of several mirrors, verifying
// each candidate against an expected content hash. Every transfer in the
// process goes through one shared semaphore.
package fetch

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/progress"
)

var (
	ErrFetchExhausted = errors.New("all download candidates failed")
	ErrHashMismatch   = errors.New("hash mismatch")
	ErrBadStatus      = errors.New("unexpected response status")
	ErrUnknownHash    = errors.New("unknown hash algorithm")
)

type httpDo interface {
	Do(req *http.Request) (*http.Response, error)
}

// Checksum is the expected digest of a payload, hex encoded.
type Checksum struct {
	Algo  string
	Value string
}

func SHA1(v string) *Checksum {
	if v == "" {
		return nil
	}

	return &Checksum{Algo: "sha1", Value: v}
}

func (c *Checksum) newHash() (hash.Hash, error) {
	switch strings.ToLower(c.Algo) {
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownHash, "algo: %s", c.Algo)
	}
}

// Verify checks data against the checksum. Hex digests compare case
// insensitively.
func (c *Checksum) Verify(data []byte) error {
	h, err := c.newHash()
	if err != nil {
		return err
	}

	h.Write(data)

	got := hex.EncodeToString(h.Sum(nil))

	if !strings.EqualFold(got, strings.TrimSpace(c.Value)) {
		return errors.Wrapf(ErrHashMismatch, "%s expected %s, got %s", c.Algo, c.Value, got)
	}

	return nil
}

// ExhaustedError is returned when no candidate produced an acceptable
// payload. Errors holds the failure of each attempt in order.
type ExhaustedError struct {
	URLs   []string
	Errors *multierror.Error
}

func (e *ExhaustedError) Error() string {
	var causes string
	if e.Errors != nil {
		causes = e.Errors.Error()
	}

	return fmt.Sprintf("%s: tried %s: %s", ErrFetchExhausted, strings.Join(e.URLs, ", "), causes)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrFetchExhausted
}

func (e *ExhaustedError) Unwrap() error {
	if e.Errors == nil {
		return nil
	}

	return e.Errors.ErrorOrNil()
}

type Options struct {
	// Checksum, when set, must match the fetched bytes.
	Checksum *Checksum

	// Progress receives Units once the payload is accepted.
	Progress progress.Tracker
	Units    float64
	Message  string
}

type Fetcher struct {
	Client httpDo
	Sem    *semaphore.Weighted
	L      hclog.Logger
}

func (f *Fetcher) logger() hclog.Logger {
	if f.L == nil {
		return hclog.L()
	}

	return f.L
}

func (f *Fetcher) client() httpDo {
	if f.Client == nil {
		return http.DefaultClient
	}

	return f.Client
}

// Mirrors tries each url in order and returns the first payload that
// passes verification.
func (f *Fetcher) Mirrors(ctx context.Context, urls []string, opts Options) ([]byte, error) {
	var errs *multierror.Error

	for i, u := range urls {
		data, err := f.get(ctx, u, opts.Checksum)
		if err == nil {
			if opts.Progress != nil {
				opts.Progress.Add(opts.Units, opts.Message)
			}

			return data, nil
		}

		if errors.Is(err, ErrUnknownHash) {
			return nil, err
		}

		f.logger().Debug("mirror failed", "url", u, "attempt", i+1, "error", err)

		errs = multierror.Append(errs, errors.Wrapf(err, "fetching %s", u))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ExhaustedError{URLs: urls, Errors: errs}
}

// Fetch is Mirrors with a single candidate.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts Options) ([]byte, error) {
	return f.Mirrors(ctx, []string{url}, opts)
}

// JSON fetches url and decodes the body into v.
func (f *Fetcher) JSON(ctx context.Context, url string, v interface{}) error {
	data, err := f.get(ctx, url, nil)
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return errors.Wrapf(err, "decoding %s", url)
	}

	return nil
}

func (f *Fetcher) get(ctx context.Context, url string, sum *Checksum) ([]byte, error) {
	if sum != nil {
		if _, err := sum.newHash(); err != nil {
			return nil, err
		}
	}

	if f.Sem != nil {
		err := f.Sem.Acquire(ctx, 1)
		if err != nil {
			return nil, err
		}

		defer f.Sem.Release(1)
	}

	f.logger().Trace("fetching", "url", url)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrBadStatus, "%s returned %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if sum != nil {
		err = sum.Verify(data)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}
