package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	store.lookup = nil
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".nexus", "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep", "path")

	store, err := NewConfigStore(nestedPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("canvas.z_max", 500))

	val, ok := store.Get("canvas.z_max")
	assert.True(t, ok)
	assert.Equal(t, 500, val)

	val, ok = store.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_GetString(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("storage.backend", "sqlite"))
	require.NoError(t, store.Set("canvas.z_max", 42))

	assert.Equal(t, "sqlite", store.GetString("storage.backend"))
	assert.Equal(t, "", store.GetString("nonexistent"))
	assert.Equal(t, "", store.GetString("canvas.z_max"), "wrong type")
}

func TestConfigStore_GetInt(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 42, 42},
		{"int64 from toml", int64(9999), 9999},
		{"whole float", float64(12), 12},
		{"fractional float", 1.5, 0},
		{"numeric string", " 77 ", 77},
		{"other string", "not an int", 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.mu.Lock()
			store.data["k"] = tt.value
			store.mu.Unlock()

			assert.Equal(t, tt.want, store.GetInt("k"))
		})
	}
	assert.Equal(t, 0, store.GetInt("nonexistent"))
}

func TestConfigStore_GetBool(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("storage.write_behind", true))
	require.NoError(t, store.Set("off", false))
	require.NoError(t, store.Set("string_key", "true"))

	assert.True(t, store.GetBool("storage.write_behind"))
	assert.False(t, store.GetBool("off"))
	assert.False(t, store.GetBool("nonexistent"))
	assert.False(t, store.GetBool("string_key"), "file strings are not booleans")
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store := newTestStore(t)

	store.mu.Lock()
	store.data["from_toml"] = []any{"width", 3, "height"}
	store.data["native"] = []string{"a"}
	store.data["scalar"] = "a,b"
	store.mu.Unlock()

	assert.Equal(t, []string{"width", "height"}, store.GetStringSlice("from_toml"))
	assert.Equal(t, []string{"a"}, store.GetStringSlice("native"))
	assert.Nil(t, store.GetStringSlice("scalar"))
	assert.Nil(t, store.GetStringSlice("nonexistent"))
}

func TestConfigStore_EnvOverride(t *testing.T) {
	store := newTestStore(t)
	env := map[string]string{
		"NEXUS_STORAGE_BACKEND":              "file",
		"NEXUS_CANVAS_Z_MAX":                 "250",
		"NEXUS_STORAGE_WRITE_BEHIND":         "true",
		"NEXUS_CANVAS_SIZE_AFFECTING_FIELDS": "width, height,,",
	}
	store.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	require.NoError(t, store.Set("storage.backend", "sqlite"))

	assert.Equal(t, "file", store.GetString("storage.backend"))
	assert.Equal(t, 250, store.GetInt("canvas.z_max"))
	assert.True(t, store.GetBool("storage.write_behind"))
	assert.Equal(t, []string{"width", "height"}, store.GetStringSlice("canvas.size_affecting_fields"))

	// The override is not persisted.
	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.lookup = nil
	assert.Equal(t, "sqlite", reloaded.GetString("storage.backend"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "NEXUS_CANVAS_Z_MAX", EnvKey("canvas.z_max"))
	assert.Equal(t, "NEXUS_HISTORY_CODEC", EnvKey("history.codec"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store1.Set("canvas.history_throttle", "350ms"))
	require.NoError(t, store1.Set("canvas.z_max", 42))
	require.NoError(t, store1.Set("storage.write_behind", true))
	require.NoError(t, store1.Set("canvas.size_affecting_fields", []string{"width", "height"}))
	require.NoError(t, store1.Set("top", 3.14159))

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	store2.lookup = nil

	assert.Equal(t, "350ms", store2.GetString("canvas.history_throttle"))
	assert.Equal(t, 42, store2.GetInt("canvas.z_max"))
	assert.True(t, store2.GetBool("storage.write_behind"))
	assert.Equal(t, []string{"width", "height"}, store2.GetStringSlice("canvas.size_affecting_fields"))
	floatVal, ok := store2.Get("top")
	assert.True(t, ok)
	assert.InDelta(t, 3.14159, floatVal, 0.00001)
}

func TestConfigStore_WritesTables(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("canvas.z_max", 9999))
	require.NoError(t, store.Set("storage.backend", "sqlite"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "[canvas]")
	assert.Contains(t, text, "[storage]")
	assert.NotContains(t, text, `'canvas.z_max'`)
}

func TestConfigStore_KeyConflict(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("canvas.z_max", 10))
	err := store.Set("canvas", "flat")
	assert.Error(t, err)

	// A failed Set leaves the previous state in place.
	_, ok := store.Get("canvas")
	assert.False(t, ok)
	assert.Equal(t, 10, store.GetInt("canvas.z_max"))
}

func TestConfigStore_Keys(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("storage.backend", "memory"))
	require.NoError(t, store.Set("canvas.z_max", 10))

	assert.Equal(t, []string{"canvas.z_max", "storage.backend"}, store.Keys())
}

func TestConfigStore_Save_Explicit(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	store.mu.Lock()
	store.data["manual_key"] = "manual_value"
	store.mu.Unlock()

	require.NoError(t, store.Save())

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "manual_value", store2.GetString("manual_key"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("test", "value"))

	// Replace the file with a directory so the rename fails.
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
	_, ok := store.Get("another")
	assert.False(t, ok)
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store := newTestStore(t)

	// Channels cannot be marshaled to TOML
	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("valid", "data"))

	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml syntax ][}{"), 0600))

	assert.Error(t, store.Load())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"comment only": "# Just a comment\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

			store, err := NewConfigStore(tmpDir)
			require.NoError(t, err)
			store.lookup = nil

			val, ok := store.Get("any_key")
			assert.False(t, ok)
			assert.Nil(t, val)
		})
	}
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "canvas.key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetString(key)
			_ = store.GetBool(key)
			_, _ = store.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 10)
}

func TestUnflattenMap(t *testing.T) {
	tree, err := unflattenMap(map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, tree)

	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(tree, ""))

	_, err = unflattenMap(map[string]any{"a": 1, "a.b": 2})
	assert.Error(t, err)
}

func TestConfigStore_SetMany(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetMany(map[string]any{
		"storage.backend": "sqlite",
		"canvas.z_max":    int64(500),
	}))

	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.lookup = nil
	assert.Equal(t, "sqlite", reloaded.GetString("storage.backend"))
	assert.Equal(t, 500, reloaded.GetInt("canvas.z_max"))
}

func TestConfigStore_SetMany_RollsBackOnWriteError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("storage.backend", "file"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	err := store.SetMany(map[string]any{
		"storage.backend": "sqlite",
		"history.codec":   "s2",
	})

	assert.Error(t, err)
	assert.Equal(t, "file", store.GetString("storage.backend"))
	_, ok := store.Get("history.codec")
	assert.False(t, ok)
}
