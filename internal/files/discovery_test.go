package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestDiscovery_FindWorkbooks(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	touch(t, dir, "duke_data_v4_jan.xlsx", base)
	touch(t, dir, "duke_data_v4_feb.xlsx", base.Add(time.Minute))
	touch(t, dir, "~$duke_data_v4_feb.xlsx", base.Add(2*time.Minute))
	touch(t, dir, "notes.csv", base)

	files, err := NewDiscovery(dir).FindWorkbooks(".")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "duke_data_v4_jan.xlsx", files[0].Name)
	assert.Equal(t, "duke_data_v4_feb.xlsx", files[1].Name)
}

func TestDiscovery_NewestWorkbook(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	touch(t, dir, "duke_data_v4_jan.xlsx", base)
	touch(t, dir, "Duke Data V4 Preliminary.xlsx", base.Add(10*time.Minute))

	got, err := NewDiscovery(dir).NewestWorkbook(".")
	require.NoError(t, err)
	assert.Equal(t, "duke_data_v4_jan.xlsx", got.Name, "preliminary file must lose to a final one")
}

func TestDiscovery_NewestWorkbook_PreliminaryFallback(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Duke Data V4 Preliminary.xlsx", time.Now().Add(-time.Hour))

	got, err := NewDiscovery(dir).NewestWorkbook(".")
	require.NoError(t, err)
	assert.Equal(t, "Duke Data V4 Preliminary.xlsx", got.Name)
}

func TestDiscovery_NewestWorkbook_Empty(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).NewestWorkbook(".")
	assert.Error(t, err)
}
