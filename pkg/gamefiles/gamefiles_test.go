package gamefiles

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/mrinstall/pkg/fetch"
	"lab47.dev/mrinstall/pkg/profile"
	"lab47.dev/mrinstall/pkg/progress"
)

func TestMetadataInstaller(t *testing.T) {
	ctx := context.Background()

	versionJSON := []byte(`{"id":"1.20.1","mainClass":"net.minecraft.client.main.Main"}`)
	sum := sha1.Sum(versionJSON)

	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.json":
			var vm VersionManifest
			vm.Versions = []VersionRef{
				{ID: "1.20.1", Type: "release", URL: srv.URL + "/v/1.20.1.json", SHA1: hex.EncodeToString(sum[:])},
				{ID: "1.19.2", Type: "release", URL: srv.URL + "/v/1.19.2.json", SHA1: "0000"},
			}

			json.NewEncoder(w).Encode(&vm)
		case "/v/1.20.1.json", "/v/1.19.2.json":
			w.Write(versionJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	L := hclog.New(&hclog.LoggerOptions{Level: hclog.Error})

	inst := &MetadataInstaller{
		ManifestURL: srv.URL + "/manifest.json",
		Fetcher:     &fetch.Fetcher{L: L},
		L:           L,
	}

	t.Run("writes the version json into the profile", func(t *testing.T) {
		p := &profile.Profile{Path: t.TempDir()}
		p.Metadata.GameVersion = "1.20.1"

		bar := progress.New("t", "t", 100, nil)

		err := inst.InstallRuntime(ctx, p, bar.Span(50, 100))
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(p.Path, "versions", "1.20.1", "1.20.1.json"))
		require.NoError(t, err)

		assert.Equal(t, versionJSON, data)
		assert.InDelta(t, 50.0, bar.Percent(), 0.0001)
	})

	t.Run("rejects versions missing from the manifest", func(t *testing.T) {
		p := &profile.Profile{Path: t.TempDir()}
		p.Metadata.GameVersion = "0.0.1"

		err := inst.InstallRuntime(ctx, p, nil)
		assert.True(t, errors.Is(err, ErrUnknownVersion))
	})

	t.Run("fails when the version json does not verify", func(t *testing.T) {
		p := &profile.Profile{Path: t.TempDir()}
		p.Metadata.GameVersion = "1.19.2"

		err := inst.InstallRuntime(ctx, p, nil)
		assert.True(t, errors.Is(err, fetch.ErrFetchExhausted))

		_, err = os.Stat(filepath.Join(p.Path, "versions"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestNoop(t *testing.T) {
	bar := progress.New("t", "t", 100, nil)

	err := Noop{}.InstallRuntime(context.Background(), &profile.Profile{}, bar.Span(10, 100))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, bar.Percent(), 0.0001)
}
