package dataset

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/xerrors"
	"gotest.tools/assert"
)

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	assert.NilError(t, ioutil.WriteFile(filepath.Join(dir, name+".tsv"), []byte(body), 0644))
}

func assemblerFixture(t *testing.T) (Assembler, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "assemble-*")
	assert.NilError(t, err)
	writeSource(t, dir, "gex",
		"sample_id\tg1\tg2\nS1\t1\t2\nS2\t3\t4\nS3\t5\t6\n")
	writeSource(t, dir, "thresholded_cna",
		"sample_id\tg1\tg2\nS1\t0\t1\nS2\t1\t1\nS3\t0\t0\n")
	writeSource(t, dir, "cancer_type",
		"sample_id\tcancer_type\nS1\tbrca\nS2\tbrca\nS3\tluad\n")
	writeSource(t, dir, "tumor_purity",
		"sample_id\tpurity\nS1\t0.5\nS2\t0.75\nS3\t0.25\n")
	writeSource(t, dir, "cancer_type_one_hot",
		"sample_id\tcancer_type_brca\tcancer_type_luad\nS1\t1\t0\nS2\t1\t0\nS3\t0\t1\n")
	return Assembler{Dir: dir, Seed: 11}, func() { os.RemoveAll(dir) }
}

func Test_AssembleAll(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()

	ds, err := a.Assemble(AllCancerTypes, []string{"thresholded_cna", "tumor_purity"}, "gex")
	assert.NilError(t, err)
	assert.Equal(t, ds.Len(), 3)
	// 2 cna + 1 purity + 2 one-hot columns
	assert.Equal(t, ds.InputDim, 5)
	assert.Equal(t, ds.OutputDim, 2)
	assert.Equal(t, ds.MaskDim, 2)
	assert.DeepEqual(t, ds.OneHotColumns, []int{3, 4})
	assert.DeepEqual(t, ds.GeneIDs, []string{"g1", "g2"})

	// rows stay aligned across X, Y and labels after the shuffle
	for k, id := range ds.SampleIDs {
		switch id {
		case "S1":
			assert.Equal(t, ds.Y.At(k, 0), 1.0)
			assert.Equal(t, ds.CancerTypes[k], "brca")
		case "S3":
			assert.Equal(t, ds.Y.At(k, 1), 6.0)
			assert.Equal(t, ds.CancerTypes[k], "luad")
		}
	}
}

func Test_AssembleDeterminism(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	x, err := a.Assemble(AllCancerTypes, []string{"thresholded_cna"}, "gex")
	assert.NilError(t, err)
	y, err := a.Assemble(AllCancerTypes, []string{"thresholded_cna"}, "gex")
	assert.NilError(t, err)
	assert.DeepEqual(t, x.SampleIDs, y.SampleIDs)
}

func Test_AssembleCancerTypeFilter(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	ds, err := a.Assemble("brca", []string{"tumor_purity"}, "gex")
	assert.NilError(t, err)
	assert.Equal(t, ds.Len(), 2)
	assert.Equal(t, len(ds.OneHotColumns), 0)
	for _, ct := range ds.CancerTypes {
		assert.Equal(t, ct, "brca")
	}
}

func Test_AssembleMaskMismatch(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	writeSource(t, a.Dir, "thresholded_cna",
		"sample_id\tg1\tg9\nS1\t0\t1\nS2\t1\t1\nS3\t0\t0\n")
	_, err := a.Assemble("brca", []string{"tumor_purity"}, "gex")
	assert.Assert(t, xerrors.Is(err, ErrConfiguration))
}

func Test_AssembleCnaColumnMismatch(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	writeSource(t, a.Dir, "unthresholded_cna",
		"sample_id\tg1\tg9\nS1\t0.1\t0.2\nS2\t0.3\t0.4\nS3\t0.5\t0.6\n")
	_, err := a.Assemble("brca", []string{"unthresholded_cna"}, "gex")
	assert.Assert(t, xerrors.Is(err, ErrConfiguration))
}

func Test_AssembleMissingOneHot(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	assert.NilError(t, os.Remove(filepath.Join(a.Dir, "cancer_type_one_hot.tsv")))
	_, err := a.Assemble(AllCancerTypes, []string{"tumor_purity"}, "gex")
	assert.Assert(t, xerrors.Is(err, ErrConfiguration))
}

func Test_AssembleDisjointSamples(t *testing.T) {
	a, cleanup := assemblerFixture(t)
	defer cleanup()
	writeSource(t, a.Dir, "rppa",
		"sample_id\tp1\nS9\t0.5\n")
	_, err := a.Assemble("brca", []string{"rppa"}, "gex")
	assert.Assert(t, xerrors.Is(err, ErrDataIntegrity))
}
