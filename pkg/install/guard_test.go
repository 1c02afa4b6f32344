package install

import (
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/mrinstall/pkg/profile"
)

func TestStaged(t *testing.T) {
	L := hclog.New(&hclog.LoggerOptions{Level: hclog.Error})

	t.Run("release removes an uncommitted profile", func(t *testing.T) {
		store, err := profile.Open(t.TempDir(), L)
		require.NoError(t, err)

		st, err := Stage(store, profile.CreateOptions{Name: "doomed"}, L)
		require.NoError(t, err)

		_, err = os.Stat(st.Path())
		require.NoError(t, err)

		st.Release()

		_, err = os.Stat(st.Path())
		assert.True(t, os.IsNotExist(err))

		_, ok := store.Get(st.Path())
		assert.False(t, ok)
	})

	t.Run("commit keeps the profile", func(t *testing.T) {
		store, err := profile.Open(t.TempDir(), L)
		require.NoError(t, err)

		st, err := Stage(store, profile.CreateOptions{Name: "keeper"}, L)
		require.NoError(t, err)

		st.Commit()
		st.Release()

		_, err = os.Stat(st.Path())
		assert.NoError(t, err)

		p, ok := store.Get(st.Path())
		require.True(t, ok)
		assert.Equal(t, profile.Staging, p.Stage)
	})
}
