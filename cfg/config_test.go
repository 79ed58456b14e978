package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hatlonely/entmap/ref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeOptions struct {
	Type   string `cfg:"type" def:"map" validate:"oneof=map kv"`
	Prefix string `cfg:"prefix" def:"entity"`
}

type appOptions struct {
	Name  string          `cfg:"name" validate:"required"`
	Store storeOptions    `cfg:"store"`
	Log   ref.TypeOptions `cfg:"log"`
}

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		c, err := NewConfig(writeFile(t, "app.yaml", `
name: entmap
store:
  prefix: product
log:
  namespace: github.com/hatlonely/entmap/log/logger
  type: SLog
  options:
    level: debug
`))
		require.NoError(t, err)

		var options appOptions
		require.NoError(t, c.ConvertTo(&options))
		assert.Equal(t, "entmap", options.Name)
		assert.Equal(t, "map", options.Store.Type)
		assert.Equal(t, "product", options.Store.Prefix)
		assert.Equal(t, "SLog", options.Log.Type)
		assert.NotNil(t, options.Log.Options)

		var store storeOptions
		require.NoError(t, c.Sub("store").ConvertTo(&store))
		assert.Equal(t, "product", store.Prefix)

		buf, err := c.Encode()
		require.NoError(t, err)
		assert.Contains(t, string(buf), "prefix: product")
	})

	t.Run("json", func(t *testing.T) {
		c, err := NewConfig(writeFile(t, "app.json", `{"name": "entmap", "store": {"type": "kv"}}`))
		require.NoError(t, err)
		var options appOptions
		require.NoError(t, c.ConvertTo(&options))
		assert.Equal(t, "kv", options.Store.Type)
		assert.Equal(t, "entity", options.Store.Prefix)
	})

	t.Run("validate failed", func(t *testing.T) {
		c, err := NewConfig(writeFile(t, "app.toml", `
[store]
type = "sql"
`))
		require.NoError(t, err)
		var options appOptions
		assert.Error(t, c.ConvertTo(&options))
	})

	t.Run("explicit decoder", func(t *testing.T) {
		c, err := NewConfigWithOptions(&Options{
			Filename: writeFile(t, "app.conf", `name: entmap`),
			Decoder: &ref.TypeOptions{
				Namespace: "github.com/hatlonely/entmap/cfg/decoder",
				Type:      "YamlDecoder",
			},
		})
		require.NoError(t, err)
		var name string
		require.NoError(t, c.Sub("name").ConvertTo(&name))
		assert.Equal(t, "entmap", name)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := NewConfig("")
		assert.Error(t, err)
		_, err = NewConfig("app.xml")
		assert.Error(t, err)
		_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
		_, err = NewConfig(writeFile(t, "bad.json", `{"name":`))
		assert.Error(t, err)
	})
}
