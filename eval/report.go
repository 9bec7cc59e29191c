package eval

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oncoml/cna2gex/fu"
	"github.com/oncoml/cna2gex/model"
	"github.com/oncoml/cna2gex/tables"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zlog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
Group is one row of the stratified metrics table: the regression metrics
of a cancer-type subgroup computed over its flattened sample x gene
values. Corr or PValue may be NaN when the correlation is ill-defined
for the group; such rows are emitted as-is.
*/
type Group struct {
	CancerType string
	MSE        float64
	Corr       float64
	PValue     float64
}

/*
Reporter persists per-split prediction artifacts and computes the
stratified evaluation metrics. Artifacts are written under
<ExperimentDir>/<split>_results/ with rows sorted by sample_id and gene
columns sorted by id, so the output is reproducible regardless of batch
order.
*/
type Reporter struct {
	ExperimentDir string
	GeneIDs       []string
	Loss          model.Loss
}

func (r Reporter) output(splitName, file string) iokit.Output {
	return iokit.File(filepath.Join(r.ExperimentDir, splitName+"_results", file))
}

/*
Report writes ground_truths.tsv, predictions.tsv, cancer_types.tsv and
evaluation_metrics_all.tsv for one split and returns the metric rows:
one per cancer type present in the split, in ascending order, plus the
synthetic "all" group last.
*/
func (r Reporter) Report(splitName string, preds, truths *mat.Dense, sampleIDs []string, cancerTypes map[string]string) ([]Group, error) {
	order := make([]int, len(sampleIDs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return sampleIDs[order[a]] < sampleIDs[order[b]] })
	geneOrder := make([]int, len(r.GeneIDs))
	for j := range geneOrder {
		geneOrder[j] = j
	}
	sort.Slice(geneOrder, func(a, b int) bool { return r.GeneIDs[geneOrder[a]] < r.GeneIDs[geneOrder[b]] })

	n, g := len(order), len(geneOrder)
	total := float64(n * g)
	loss := r.Loss.Sum(preds, truths) / total
	zlog.Info(fmt.Sprintf("%s %v loss is %.2f.", strings.Title(splitName), r.Loss.Name(), loss))
	zlog.Info(fmt.Sprintf("Saving results for %v split.", splitName))

	header := append([]string{"sample_id"}, sortedNames(r.GeneIDs, geneOrder)...)
	if err := tables.WriteTSV(r.output(splitName, "ground_truths.tsv"), header, valueRows(truths, sampleIDs, order, geneOrder)); err != nil {
		return nil, err
	}
	if err := tables.WriteTSV(r.output(splitName, "predictions.tsv"), header, valueRows(preds, sampleIDs, order, geneOrder)); err != nil {
		return nil, err
	}
	ctRows := make([][]string, n)
	for k, i := range order {
		ctRows[k] = []string{sampleIDs[i], cancerTypes[sampleIDs[i]]}
	}
	if err := tables.WriteTSV(r.output(splitName, "cancer_types.tsv"), []string{"sample_id", "cancer_type"}, ctRows); err != nil {
		return nil, err
	}

	groups := r.metrics(preds, truths, sampleIDs, cancerTypes, order, geneOrder)
	mRows := make([][]string, len(groups))
	for k, gr := range groups {
		mRows[k] = []string{gr.CancerType, formatFloat(gr.MSE), formatFloat(gr.Corr), formatFloat(gr.PValue)}
	}
	err := tables.WriteTSV(r.output(splitName, "evaluation_metrics_all.tsv"),
		[]string{"cancer_type", "all_mse", "all_corr", "all_p_value"}, mRows)
	if err != nil {
		return nil, err
	}
	zlog.Info(fmt.Sprintf("Saved results for %v split.", splitName))
	return groups, nil
}

func (r Reporter) metrics(preds, truths *mat.Dense, sampleIDs []string, cancerTypes map[string]string, order, geneOrder []int) []Group {
	byType := map[string][]int{}
	for _, i := range order {
		ct := cancerTypes[sampleIDs[i]]
		byType[ct] = append(byType[ct], i)
	}
	names := make([]string, 0, len(byType))
	for ct := range byType {
		names = append(names, ct)
	}
	sort.Strings(names)
	names = append(names, "all")
	byType["all"] = order

	groups := make([]Group, 0, len(names))
	for _, ct := range names {
		gt := flatten(truths, byType[ct], geneOrder)
		pr := flatten(preds, byType[ct], geneOrder)
		corr := stat.Correlation(gt, pr, nil)
		groups = append(groups, Group{
			CancerType: ct,
			MSE:        fu.Mse(gt, pr),
			Corr:       corr,
			PValue:     pValue(corr, len(gt)),
		})
	}
	return groups
}

// pValue is the two-sided p-value of the Pearson correlation under the
// t-distribution with n-2 degrees of freedom. Undefined cases (too few
// values, NaN correlation) propagate as NaN.
func pValue(corr float64, n int) float64 {
	if n < 3 || math.IsNaN(corr) {
		return math.NaN()
	}
	nu := float64(n - 2)
	t := corr * math.Sqrt(nu/(1-corr*corr))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}
	return 2 * dist.CDF(-math.Abs(t))
}

func flatten(m *mat.Dense, rows, geneOrder []int) []float64 {
	r := make([]float64, 0, len(rows)*len(geneOrder))
	for _, i := range rows {
		for _, j := range geneOrder {
			r = append(r, m.At(i, j))
		}
	}
	return r
}

func sortedNames(names []string, order []int) []string {
	r := make([]string, len(order))
	for k, j := range order {
		r[k] = names[j]
	}
	return r
}

func valueRows(m *mat.Dense, sampleIDs []string, order, geneOrder []int) [][]string {
	rows := make([][]string, len(order))
	for k, i := range order {
		row := make([]string, 1+len(geneOrder))
		row[0] = sampleIDs[i]
		for c, j := range geneOrder {
			row[c+1] = formatFloat(m.At(i, j))
		}
		rows[k] = row
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
