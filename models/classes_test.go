package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYOLOClasses(t *testing.T) {
	assert.Equal(t, 80, YOLOClasses.Len())
	assert.Equal(t, "person", YOLOClasses.Name(0))
	assert.Equal(t, "car", YOLOClasses.Name(2))
	assert.Equal(t, "toothbrush", YOLOClasses.Name(79))

	idx, err := YOLOClasses.Index("dog")
	require.NoError(t, err)
	assert.Equal(t, 16, idx)

	_, err = YOLOClasses.Index("unicorn")
	assert.Error(t, err)
}

func TestOutputClassSet_NameFallback(t *testing.T) {
	assert.Equal(t, "class_80", YOLOClasses.Name(80))
	assert.Equal(t, "class_-1", YOLOClasses.Name(-1))

	var empty *OutputClassSet
	assert.Equal(t, "class_3", empty.Name(3))
}

func TestLoadClassFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat\n\n  dog  \r\nbird\n"), 0o644))

	set, err := LoadClassFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog", "bird"}, set.Names())
	assert.Equal(t, "dog", set.Name(1))

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))
	_, err = LoadClassFile(empty)
	assert.Error(t, err)

	_, err = LoadClassFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
