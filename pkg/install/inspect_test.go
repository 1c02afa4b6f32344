package install

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/mrinstall/pkg/pack"
)

func TestInspect(t *testing.T) {
	m := manifest(pack.File{Path: "mods/a.jar", Downloads: []string{"https://x/a.jar"}, FileSize: 10})

	data := buildPack(t, m,
		entry{"client_overrides/options.txt", "client"},
		entry{"overrides/", ""},
		entry{"overrides/options.txt", "common"},
		entry{"overrides/profile.json", "{}"},
	)

	s, err := Inspect(data)
	require.NoError(t, err)

	assert.Equal(t, "Test Pack", s.Manifest.Name)
	assert.Equal(t, int64(10), s.Manifest.TotalSize())
	assert.Equal(t, []string{"options.txt", "options.txt"}, s.Overrides)
}
