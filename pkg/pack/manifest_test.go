package pack

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `{
  "game": "minecraft",
  "formatVersion": 1,
  "versionId": "1.2.0",
  "name": "Example Pack",
  "summary": "a small pack",
  "files": [
    {
      "path": "mods/a.jar",
      "hashes": {"sha1": "abc", "sha512": "def", "blake3": "zzz"},
      "env": {"client": "required", "server": "optional"},
      "downloads": ["https://cdn.example/a.jar", "https://mirror.example/a.jar"],
      "fileSize": 10
    },
    {
      "path": "mods/server-only.jar",
      "hashes": {"sha1": "123"},
      "env": {"client": "unsupported", "server": "required"},
      "downloads": ["https://cdn.example/s.jar"],
      "fileSize": 99
    }
  ],
  "dependencies": {"minecraft": "1.20.1", "fabric-loader": "0.14.21"}
}`

func TestManifest(t *testing.T) {
	t.Run("parses a pack index", func(t *testing.T) {
		m, err := Parse([]byte(sampleIndex))
		require.NoError(t, err)

		assert.Equal(t, "minecraft", m.Game)
		assert.Equal(t, 1, m.FormatVersion)
		assert.Equal(t, "Example Pack", m.Name)
		require.Len(t, m.Files, 2)

		f := m.Files[0]
		assert.Equal(t, "abc", f.Hashes[SHA1])
		assert.Equal(t, "zzz", f.Hashes[HashAlgorithm("blake3")])
		assert.False(t, HashAlgorithm("blake3").Known())
		assert.False(t, f.ClientUnsupported())
		assert.True(t, m.Files[1].ClientUnsupported())

		assert.Equal(t, int64(10), m.TotalSize())
	})

	t.Run("round trips through json", func(t *testing.T) {
		m, err := Parse([]byte(sampleIndex))
		require.NoError(t, err)

		data, err := json.Marshal(m)
		require.NoError(t, err)

		m2, err := Parse(data)
		require.NoError(t, err)

		assert.Equal(t, m, m2)
	})

	t.Run("resolves the game version and loader", func(t *testing.T) {
		m, err := Parse([]byte(sampleIndex))
		require.NoError(t, err)

		require.NoError(t, m.CheckGame())

		gv, err := m.GameVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.20.1", gv)

		l, v := m.Loader()
		assert.Equal(t, Fabric, l)
		assert.Equal(t, "0.14.21", v)
	})

	t.Run("treats packs without a loader as vanilla", func(t *testing.T) {
		m := &Manifest{Game: Game, Dependencies: map[Dependency]string{DepMinecraft: "1.19.4"}}

		l, v := m.Loader()
		assert.Equal(t, Vanilla, l)
		assert.Equal(t, "", v)
	})

	t.Run("rejects other games", func(t *testing.T) {
		m := &Manifest{Game: "terraria"}

		err := m.CheckGame()
		assert.True(t, errors.Is(err, ErrUnsupportedGame))
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("requires a minecraft dependency", func(t *testing.T) {
		m := &Manifest{Game: Game, Dependencies: map[Dependency]string{DepForge: "47.1.0"}}

		_, err := m.GameVersion()
		assert.True(t, errors.Is(err, ErrMissingPlatformVersion))
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("rejects files without downloads", func(t *testing.T) {
		_, err := Parse([]byte(`{"game":"minecraft","files":[{"path":"a","hashes":{},"downloads":[],"fileSize":1}],"dependencies":{"minecraft":"1.20.1"}}`))
		assert.True(t, errors.Is(err, ErrInvalidManifest))
	})

	t.Run("rejects unknown dependency keys", func(t *testing.T) {
		_, err := Parse([]byte(`{"game":"minecraft","files":[],"dependencies":{"minecraft":"1.20.1","liteloader":"1"}}`))
		assert.True(t, errors.Is(err, ErrInvalidManifest))
	})

	t.Run("rejects more than one loader", func(t *testing.T) {
		_, err := Parse([]byte(`{"game":"minecraft","files":[],"dependencies":{"minecraft":"1.20.1","forge":"1","quilt-loader":"2"}}`))
		assert.True(t, errors.Is(err, ErrInvalidManifest))
	})

	t.Run("reports type mismatches as invalid manifests", func(t *testing.T) {
		_, err := Parse([]byte(`{"game":"minecraft","files":{},"dependencies":{}}`))
		assert.True(t, errors.Is(err, ErrInvalidManifest))

		_, err = Parse([]byte(`not json`))
		assert.True(t, errors.Is(err, ErrInvalidManifest))
	})

	t.Run("prefers sha1 when picking a checksum", func(t *testing.T) {
		f := File{Hashes: map[HashAlgorithm]string{SHA512: "b", SHA1: "a"}}

		algo, v, ok := f.Checksum()
		require.True(t, ok)
		assert.Equal(t, SHA1, algo)
		assert.Equal(t, "a", v)

		f = File{Hashes: map[HashAlgorithm]string{"md5": "x"}}
		_, _, ok = f.Checksum()
		assert.False(t, ok)
	})
}
