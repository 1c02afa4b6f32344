package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/pack"
)

func TestMetaResolver(t *testing.T) {
	ctx := context.Background()

	manifests := map[string]*Manifest{
		"/fabric/v0/manifest.json": {
			GameVersions: []GameVersion{
				{
					ID: GameVersionPlaceholder,
					Loaders: []Version{
						{ID: "0.15.0-beta", Stable: false},
						{ID: "0.14.22", Stable: true},
						{ID: "0.14.21", Stable: true},
					},
				},
			},
		},
		"/forge/v0/manifest.json": {
			GameVersions: []GameVersion{
				{
					ID: "1.20.1",
					Loaders: []Version{
						{ID: "1.20.1-47.1.3"},
						{ID: "1.20.1-47.1.0", Stable: true},
					},
				},
				{
					ID:      "1.19.2",
					Loaders: []Version{{ID: "1.19.2-43.2.0", Stable: true}},
				},
			},
		},
	}

	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)

		m, ok := manifests[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		json.NewEncoder(w).Encode(m)
	}))
	defer srv.Close()

	L := hclog.New(&hclog.LoggerOptions{Level: hclog.Error})

	r := &MetaResolver{
		BaseURL: srv.URL,
		Fetcher: &fetch.Fetcher{L: L},
		L:       L,
	}

	t.Run("vanilla needs no loader version", func(t *testing.T) {
		before := atomic.LoadInt32(&hits)

		v, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Vanilla, "")
		require.NoError(t, err)

		assert.Equal(t, "", v)
		assert.Equal(t, before, atomic.LoadInt32(&hits))
	})

	t.Run("resolves latest and stable through the placeholder entry", func(t *testing.T) {
		v, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Fabric, Latest)
		require.NoError(t, err)
		assert.Equal(t, "0.15.0-beta", v)

		v, err = r.ResolveLoaderVersion(ctx, "1.20.1", pack.Fabric, Stable)
		require.NoError(t, err)
		assert.Equal(t, "0.14.22", v)
	})

	t.Run("resolves explicit versions", func(t *testing.T) {
		v, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Fabric, "0.14.21")
		require.NoError(t, err)
		assert.Equal(t, "0.14.21", v)
	})

	t.Run("matches forge versions with or without the game prefix", func(t *testing.T) {
		v, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Forge, "47.1.0")
		require.NoError(t, err)
		assert.Equal(t, "1.20.1-47.1.0", v)

		v, err = r.ResolveLoaderVersion(ctx, "1.20.1", pack.Forge, "1.20.1-47.1.3")
		require.NoError(t, err)
		assert.Equal(t, "1.20.1-47.1.3", v)
	})

	t.Run("rejects unknown loader versions", func(t *testing.T) {
		_, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Fabric, "9.9.9")
		assert.True(t, errors.Is(err, ErrNoLoaderVersion))
		assert.True(t, errors.Is(err, pack.ErrInvalidInput))
	})

	t.Run("rejects game versions the loader does not publish", func(t *testing.T) {
		_, err := r.ResolveLoaderVersion(ctx, "1.7.10", pack.Forge, "")
		assert.True(t, errors.Is(err, ErrNoGameVersion))
	})

	t.Run("propagates metadata fetch failures", func(t *testing.T) {
		_, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Quilt, "")
		assert.True(t, errors.Is(err, fetch.ErrBadStatus))
	})

	t.Run("rejects unknown loaders", func(t *testing.T) {
		_, err := r.ResolveLoaderVersion(ctx, "1.20.1", pack.Loader("rift"), "")
		assert.True(t, errors.Is(err, ErrUnsupportedLoader))
	})
}

func TestStatic(t *testing.T) {
	v, err := Static{}.ResolveLoaderVersion(context.Background(), "1.20.1", pack.Fabric, "0.14.22")
	require.NoError(t, err)
	assert.Equal(t, "0.14.22", v)

	v, err = Static{}.ResolveLoaderVersion(context.Background(), "1.20.1", pack.Vanilla, "x")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
