package model

import (
	"encoding/gob"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
)

const stashFileName = "best-checkpoint.gob.xz"

/*
Stash persists the best model checkpoint of a training run as an
xz-compressed gob snapshot. Save is synchronous and atomic: the snapshot
is written to a temporary file first and renamed into place, so a crash
never leaves the stash pointing at a partially-written checkpoint.
*/
type Stash struct {
	dir string
}

func NewStash(dir string) (*Stash, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, zorros.Trace(err)
	}
	return &Stash{dir: dir}, nil
}

func (s *Stash) path() string {
	return filepath.Join(s.dir, stashFileName)
}

func (s *Stash) Save(snap *Snapshot) error {
	tmp, err := ioutil.TempFile(s.dir, "checkpoint-*.tmp")
	if err != nil {
		return zorros.Trace(err)
	}
	defer os.Remove(tmp.Name())
	zw, err := xz.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return zorros.Trace(err)
	}
	if err = gob.NewEncoder(zw).Encode(snap); err != nil {
		tmp.Close()
		return zorros.Wrapf(err, "failed to encode checkpoint: %v", err.Error())
	}
	if err = zw.Close(); err != nil {
		tmp.Close()
		return zorros.Trace(err)
	}
	if err = tmp.Close(); err != nil {
		return zorros.Trace(err)
	}
	if err = os.Rename(tmp.Name(), s.path()); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Stash) Load() (*Snapshot, error) {
	f, err := os.Open(s.path())
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer f.Close()
	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	snap := &Snapshot{}
	if err = gob.NewDecoder(zr).Decode(snap); err != nil {
		return nil, zorros.Wrapf(err, "failed to decode checkpoint: %v", err.Error())
	}
	return snap, nil
}

/*
Export copies the stashed best checkpoint to the given output, the
target becoming visible only after Commit succeeds.
*/
func (s *Stash) Export(out iokit.Output) error {
	rd, err := os.Open(s.path())
	if err != nil {
		return zorros.Trace(err)
	}
	defer rd.Close()
	wh, err := out.Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	if _, err = io.Copy(wh, rd); err != nil {
		return zorros.Trace(err)
	}
	if err = wh.Commit(); err != nil {
		return zorros.Trace(err)
	}
	return nil
}
