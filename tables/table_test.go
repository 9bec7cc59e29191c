package tables

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NilError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func Test_ReadTSV(t *testing.T) {
	dir, err := ioutil.TempDir("", "tables-*")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	path := writeFile(t, dir, "cna.tsv",
		"sample_id\tg1\tg2\nS1\t1\t2\nS2\t3.5\t-4\n")
	tab, err := ReadTSV(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, tab.Names, []string{"g1", "g2"})
	assert.DeepEqual(t, tab.SampleIDs, []string{"S1", "S2"})
	assert.DeepEqual(t, tab.Rows[1], []float64{3.5, -4})

	bad := writeFile(t, dir, "bad.tsv", "sample_id\tg1\nS1\toops\n")
	_, err = ReadTSV(bad)
	assert.Assert(t, err != nil)
}

func Test_InnerJoin(t *testing.T) {
	a := &Table{
		Names:     []string{"x"},
		SampleIDs: []string{"S1", "S2", "S3"},
		Rows:      [][]float64{{1}, {2}, {3}},
	}
	b := &Table{
		Names:     []string{"y", "z"},
		SampleIDs: []string{"S3", "S1"},
		Rows:      [][]float64{{30, 31}, {10, 11}},
	}
	j := InnerJoin(a, b)
	assert.DeepEqual(t, j.Names, []string{"x", "y", "z"})
	assert.DeepEqual(t, j.SampleIDs, []string{"S1", "S3"})
	assert.DeepEqual(t, j.Rows, [][]float64{{1, 10, 11}, {3, 30, 31}})
}

func Test_InnerJoinDisjoint(t *testing.T) {
	a := &Table{Names: []string{"x"}, SampleIDs: []string{"S1"}, Rows: [][]float64{{1}}}
	b := &Table{Names: []string{"y"}, SampleIDs: []string{"S2"}, Rows: [][]float64{{2}}}
	j := InnerJoin(a, b)
	assert.Equal(t, j.Len(), 0)
}

func Test_Filter(t *testing.T) {
	a := &Table{
		Names:     []string{"x"},
		SampleIDs: []string{"S1", "S2", "S3"},
		Rows:      [][]float64{{1}, {2}, {3}},
	}
	f := a.Filter(func(id string) bool { return id != "S2" })
	assert.DeepEqual(t, f.SampleIDs, []string{"S1", "S3"})
	assert.DeepEqual(t, f.Rows, [][]float64{{1}, {3}})
}
