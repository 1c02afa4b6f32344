package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
	"lab47.dev/mrinstall/pkg/progress"
)

func sha1Hex(data string) string {
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestFetcher(t *testing.T) {
	const payload = "the real jar"

	var hits sync.Map

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := hits.LoadOrStore(r.URL.Path, new(int32))
		atomic.AddInt32(v.(*int32), 1)

		switch {
		case strings.HasPrefix(r.URL.Path, "/bad"):
			fmt.Fprint(w, "corrupted bytes")
		case strings.HasPrefix(r.URL.Path, "/missing"):
			http.Error(w, "nope", http.StatusNotFound)
		case r.URL.Path == "/json":
			fmt.Fprint(w, `{"id":"abc","count":3}`)
		default:
			fmt.Fprint(w, payload)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("falls back through mirrors with the wrong hash", func(t *testing.T) {
		f := &Fetcher{}

		urls := []string{srv.URL + "/bad1", srv.URL + "/bad2", srv.URL + "/good"}

		data, err := f.Mirrors(ctx, urls, Options{Checksum: SHA1(sha1Hex(payload))})
		require.NoError(t, err)

		assert.Equal(t, payload, string(data))
	})

	t.Run("compares hex digests case insensitively", func(t *testing.T) {
		f := &Fetcher{}

		data, err := f.Fetch(ctx, srv.URL+"/good", Options{Checksum: SHA1(strings.ToUpper(sha1Hex(payload)))})
		require.NoError(t, err)

		assert.Equal(t, payload, string(data))
	})

	t.Run("accepts any payload without a checksum", func(t *testing.T) {
		f := &Fetcher{}

		data, err := f.Fetch(ctx, srv.URL+"/bad", Options{})
		require.NoError(t, err)

		assert.Equal(t, "corrupted bytes", string(data))
	})

	t.Run("names every url when all candidates fail", func(t *testing.T) {
		f := &Fetcher{}

		urls := []string{srv.URL + "/bad1", srv.URL + "/missing", "http://127.0.0.1:1/unreachable"}

		_, err := f.Mirrors(ctx, urls, Options{Checksum: SHA1(sha1Hex(payload))})
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrFetchExhausted))

		var ee *ExhaustedError
		require.True(t, errors.As(err, &ee))

		assert.Equal(t, urls, ee.URLs)
		assert.Len(t, ee.Errors.Errors, 3)

		for _, u := range urls {
			assert.Contains(t, err.Error(), u)
		}
	})

	t.Run("stops at the first good mirror", func(t *testing.T) {
		f := &Fetcher{}

		_, err := f.Mirrors(ctx, []string{srv.URL + "/first", srv.URL + "/second"}, Options{})
		require.NoError(t, err)

		_, ok := hits.Load("/second")
		assert.False(t, ok)
	})

	t.Run("reports progress only on success", func(t *testing.T) {
		f := &Fetcher{}

		bar := progress.New("t", "t", 100, nil)

		_, err := f.Fetch(ctx, srv.URL+"/bad", Options{
			Checksum: SHA1(sha1Hex(payload)),
			Progress: bar,
			Units:    40,
		})
		require.Error(t, err)
		assert.Equal(t, 0.0, bar.Percent())

		_, err = f.Fetch(ctx, srv.URL+"/good", Options{
			Checksum: SHA1(sha1Hex(payload)),
			Progress: bar,
			Units:    40,
		})
		require.NoError(t, err)
		assert.InDelta(t, 40.0, bar.Percent(), 0.0001)
	})

	t.Run("rejects unknown hash algorithms up front", func(t *testing.T) {
		f := &Fetcher{}

		_, err := f.Fetch(ctx, srv.URL+"/good", Options{Checksum: &Checksum{Algo: "md4", Value: "x"}})
		assert.True(t, errors.Is(err, ErrUnknownHash))
	})

	t.Run("decodes json documents", func(t *testing.T) {
		f := &Fetcher{}

		var v struct {
			ID    string `json:"id"`
			Count int    `json:"count"`
		}

		err := f.JSON(ctx, srv.URL+"/json", &v)
		require.NoError(t, err)

		assert.Equal(t, "abc", v.ID)
		assert.Equal(t, 3, v.Count)

		err = f.JSON(ctx, srv.URL+"/missing", &v)
		assert.True(t, errors.Is(err, ErrBadStatus))
	})
}

func TestFetcherSemaphore(t *testing.T) {
	var inflight, peak int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)

		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := &Fetcher{Sem: semaphore.NewWeighted(2)}

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), fmt.Sprintf("%s/%d", srv.URL, i), Options{})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
