package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Run("keeps plain relative paths", func(t *testing.T) {
		p, ok := NormalizePath("mods/a.jar")
		assert.True(t, ok)
		assert.Equal(t, "mods/a.jar", p)

		p, ok = NormalizePath("./config//x.txt")
		assert.True(t, ok)
		assert.Equal(t, "config/x.txt", p)

		p, ok = NormalizePath(`config\sub\y.toml`)
		assert.True(t, ok)
		assert.Equal(t, "config/sub/y.toml", p)
	})

	t.Run("rejects paths that escape the root", func(t *testing.T) {
		for _, p := range []string{
			"../evil.jar",
			"mods/../../evil.jar",
			"mods/..",
			`..\evil.jar`,
			"/etc/passwd",
			`\windows\system32`,
			"C:/evil",
		} {
			_, ok := NormalizePath(p)
			assert.False(t, ok, p)
		}
	})

	t.Run("rejects paths with no final segment", func(t *testing.T) {
		for _, p := range []string{"", ".", "./", "//", "mods/", "config/."} {
			_, ok := NormalizePath(p)
			assert.False(t, ok, p)
		}
	})
}
