package model

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func Test_StashSaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "stash-*")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	s, err := NewStash(filepath.Join(dir, "checkpoints"))
	assert.NilError(t, err)

	m := NewLinear(3, 2, newRng(1))
	assert.NilError(t, s.Save(m.Snapshot()))

	// a second save replaces the first atomically
	m.Parameters()[0].Value.Set(0, 0, 42)
	assert.NilError(t, s.Save(m.Snapshot()))

	snap, err := s.Load()
	assert.NilError(t, err)
	assert.Equal(t, snap.Kind, KindLinear)
	assert.Equal(t, snap.Tensors[0].Data[0], 42.0)

	// no leftover temporary files after saving
	files, err := ioutil.ReadDir(filepath.Join(dir, "checkpoints"))
	assert.NilError(t, err)
	assert.Equal(t, len(files), 1)
}

func Test_StashLoadMissing(t *testing.T) {
	dir, err := ioutil.TempDir("", "stash-*")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)
	s, err := NewStash(dir)
	assert.NilError(t, err)
	_, err = s.Load()
	assert.Assert(t, err != nil)
}
