package eval

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/oncoml/cna2gex/model"
	"github.com/oncoml/cna2gex/tables"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/assert"
)

func reporterFixture(t *testing.T) (Reporter, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "report-*")
	assert.NilError(t, err)
	loss, err := model.LossByName("mse")
	assert.NilError(t, err)
	return Reporter{
		ExperimentDir: dir,
		GeneIDs:       []string{"g2", "g1"},
		Loss:          loss,
	}, func() { os.RemoveAll(dir) }
}

func Test_ReportMetrics(t *testing.T) {
	r, cleanup := reporterFixture(t)
	defer cleanup()

	truths := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	preds := mat.NewDense(2, 2, []float64{1, 2, 3, 5})
	cancerTypes := map[string]string{"A": "brca", "B": "luad"}

	groups, err := r.Report("val", preds, truths, []string{"A", "B"}, cancerTypes)
	assert.NilError(t, err)
	assert.Equal(t, len(groups), 3)

	assert.Equal(t, groups[0].CancerType, "brca")
	assert.Equal(t, groups[1].CancerType, "luad")
	assert.Equal(t, groups[2].CancerType, "all")

	// pooled group: mean((0,0,0,1)^2) over 4 flattened values
	assert.Equal(t, groups[2].MSE, 0.25)
	assert.Assert(t, groups[2].PValue >= 0 && groups[2].PValue <= 1)

	// single-sample groups flatten to 2 values: the correlation p-value
	// is undefined and must be flagged as NaN, not crash
	assert.Equal(t, groups[0].MSE, 0.0)
	assert.Assert(t, math.IsNaN(groups[0].PValue))
	assert.Equal(t, groups[1].MSE, 0.5)
	assert.Assert(t, math.IsNaN(groups[1].PValue))
}

func Test_ReportUndefinedCorrelation(t *testing.T) {
	r, cleanup := reporterFixture(t)
	defer cleanup()

	// zero variance in the ground truth makes Pearson undefined
	truths := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	preds := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	groups, err := r.Report("val", preds, truths, []string{"A", "B"},
		map[string]string{"A": "brca", "B": "brca"})
	assert.NilError(t, err)
	all := groups[len(groups)-1]
	assert.Assert(t, math.IsNaN(all.Corr))
	assert.Assert(t, math.IsNaN(all.PValue))
}

func Test_ReportArtifacts(t *testing.T) {
	r, cleanup := reporterFixture(t)
	defer cleanup()

	truths := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	preds := mat.NewDense(2, 2, []float64{1, 2, 3, 5})
	cancerTypes := map[string]string{"A": "brca", "B": "luad"}

	// batch order B,A: artifacts must come out sorted by sample_id anyway
	_, err := r.Report("test", preds, truths, []string{"B", "A"}, cancerTypes)
	assert.NilError(t, err)

	pt, err := tables.ReadTSV(filepath.Join(r.ExperimentDir, "test_results", "predictions.tsv"))
	assert.NilError(t, err)
	assert.DeepEqual(t, pt.SampleIDs, []string{"A", "B"})
	// gene columns sorted ascending although GeneIDs arrived as g2,g1
	assert.DeepEqual(t, pt.Names, []string{"g1", "g2"})
	// row A held the g2,g1 values 3,5 -> sorted columns give g1=5, g2=3
	assert.DeepEqual(t, pt.Rows[0], []float64{5, 3})

	for _, f := range []string{"ground_truths.tsv", "cancer_types.tsv", "evaluation_metrics_all.tsv"} {
		_, err := os.Stat(filepath.Join(r.ExperimentDir, "test_results", f))
		assert.NilError(t, err)
	}
}
