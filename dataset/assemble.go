package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/oncoml/cna2gex/tables"
	"go-ml.dev/pkg/zorros/zlog"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
)

const (
	maskSource       = "thresholded_cna"
	cancerTypeSource = "cancer_type"
	oneHotSource     = "cancer_type_one_hot"
	oneHotPrefix     = "cancer_type_"

	// AllCancerTypes selects every sample and appends the one-hot
	// cancer-type encoding to the feature vector.
	AllCancerTypes = "all"
)

/*
Assembler merges heterogeneous per-sample tabular sources into one
aligned record set. Dir is the directory holding the processed .tsv
sources; Seed drives the reproducibility shuffle of the merged rows.
*/
type Assembler struct {
	Dir  string
	Seed int64
}

/*
Dataset is the full in-memory record set after merge, sliced by
cumulative column offsets in the order [input|output|mask]. Cancer type
is carried as a label-only field alongside the numeric matrices.
*/
type Dataset struct {
	X, Y, Mask    *mat.Dense
	SampleIDs     []string
	CancerTypes   []string
	GeneIDs       []string
	InputDim      int
	OutputDim     int
	MaskDim       int
	OneHotColumns []int
}

func (ds *Dataset) Len() int { return len(ds.SampleIDs) }

func (a Assembler) source(name string) string {
	return filepath.Join(a.Dir, name+".tsv")
}

/*
Assemble loads the named input sources, the output source, the mask and
cancer-type sources, restricts them to the requested cancer type (or
joins the precomputed one-hot encoding when cancerType is "all"), inner
joins everything on sample_id and slices the merged rows into aligned
feature/target/mask matrices.
*/
func (a Assembler) Assemble(cancerType string, inputSources []string, outputSource string) (*Dataset, error) {
	output, err := tables.ReadTSV(a.source(outputSource))
	if err != nil {
		return nil, err
	}
	mask, err := tables.ReadTSV(a.source(maskSource))
	if err != nil {
		return nil, err
	}
	if !equalNames(output.Names, mask.Names) {
		return nil, xerrors.Errorf("columns of output source %v are not the same with columns of the mask source: %w", outputSource, ErrConfiguration)
	}
	labels, err := tables.ReadLabelsTSV(a.source(cancerTypeSource))
	if err != nil {
		return nil, err
	}
	lookup := labels.Lookup()

	input, err := a.mergeInputs(cancerType, inputSources, output, lookup)
	if err != nil {
		return nil, err
	}

	merged := tables.InnerJoin(input, output)
	merged = tables.InnerJoin(merged, mask)
	merged = merged.Filter(func(id string) bool { _, ok := lookup[id]; return ok })
	if merged.Len() == 0 {
		return nil, xerrors.Errorf("no sample ids are common to all sources: %w", ErrDataIntegrity)
	}

	perm := rand.New(rand.NewSource(a.Seed)).Perm(merged.Len())
	ds := &Dataset{
		GeneIDs:   output.Names,
		InputDim:  len(input.Names),
		OutputDim: len(output.Names),
		MaskDim:   len(mask.Names),
	}
	for j, name := range input.Names {
		if strings.HasPrefix(name, oneHotPrefix) {
			ds.OneHotColumns = append(ds.OneHotColumns, j)
		}
	}
	n := merged.Len()
	ds.SampleIDs = make([]string, n)
	ds.CancerTypes = make([]string, n)
	ds.X = mat.NewDense(n, ds.InputDim, nil)
	ds.Y = mat.NewDense(n, ds.OutputDim, nil)
	ds.Mask = mat.NewDense(n, ds.MaskDim, nil)
	for k, i := range perm {
		row := merged.Rows[i]
		ds.SampleIDs[k] = merged.SampleIDs[i]
		ds.CancerTypes[k] = lookup[merged.SampleIDs[i]]
		ds.X.SetRow(k, row[:ds.InputDim])
		ds.Y.SetRow(k, row[ds.InputDim:ds.InputDim+ds.OutputDim])
		ds.Mask.SetRow(k, row[ds.InputDim+ds.OutputDim:])
	}
	zlog.Info(fmt.Sprintf("X shape: (%d, %d), y shape: (%d, %d), mask shape: (%d, %d)",
		n, ds.InputDim, n, ds.OutputDim, n, ds.MaskDim))
	return ds, nil
}

func (a Assembler) mergeInputs(cancerType string, inputSources []string, output *tables.Table, lookup map[string]string) (*tables.Table, error) {
	var input *tables.Table
	for _, src := range inputSources {
		t, err := tables.ReadTSV(a.source(src))
		if err != nil {
			return nil, err
		}
		// copy-number sources are gene-indexed and must align with the output genes
		if strings.Contains(src, "cna") && !equalNames(t.Names, output.Names) {
			return nil, xerrors.Errorf("columns of input source %v are not the same with columns of the output source: %w", src, ErrConfiguration)
		}
		if cancerType != AllCancerTypes {
			t = t.Filter(func(id string) bool { return lookup[id] == cancerType })
		}
		if input == nil {
			input = t
		} else {
			input = tables.InnerJoin(input, t)
		}
	}
	if input == nil {
		return nil, xerrors.Errorf("at least one input source is required: %w", ErrConfiguration)
	}
	if cancerType == AllCancerTypes {
		path := a.source(oneHotSource)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, xerrors.Errorf("one-hot cancer-type source %v is not available: %w", path, ErrConfiguration)
		}
		oneHot, err := tables.ReadTSV(path)
		if err != nil {
			return nil, err
		}
		input = tables.InnerJoin(input, oneHot)
	}
	return input, nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
