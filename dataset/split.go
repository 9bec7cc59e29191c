package dataset

import (
	"math/rand"

	"golang.org/x/xerrors"
)

/*
Split is an immutable train/val/test partition of row indices. The three
sets are disjoint and cover every row exactly once; indices within each
set keep the permuted order.
*/
type Split struct {
	Train, Val, Test []int
}

/*
ValidateRatios checks the split_ratios mapping before any data is loaded.
*/
func ValidateRatios(ratios map[string]float64) error {
	for _, k := range []string{"train", "val", "test"} {
		if _, ok := ratios[k]; !ok {
			return xerrors.Errorf("split_ratios must have the keys 'train', 'val' and 'test': %w", ErrConfiguration)
		}
	}
	if ratios["train"]+ratios["val"]+ratios["test"] != 1.0 {
		return xerrors.Errorf("split_ratios values must sum up to 1.0: %w", ErrConfiguration)
	}
	return nil
}

/*
Partition derives the train/val/test index sets from a seeded
permutation of [0..n). Train takes the first floor(n*train) permuted
indices, val the next floor(n*val), test the remainder. Identical
(n, ratios, seed) always produce identical partitions.
*/
func Partition(n int, ratios map[string]float64, seed int64) (Split, error) {
	if err := ValidateRatios(ratios); err != nil {
		return Split{}, err
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	trainSize := int(float64(n) * ratios["train"])
	valSize := int(float64(n) * ratios["val"])
	s := Split{
		Train: perm[:trainSize],
		Val:   perm[trainSize : trainSize+valSize],
		Test:  perm[trainSize+valSize:],
	}
	for _, q := range []struct {
		name  string
		ratio float64
		size  int
	}{
		{"train", ratios["train"], len(s.Train)},
		{"val", ratios["val"], len(s.Val)},
		{"test", ratios["test"], len(s.Test)},
	} {
		if q.ratio > 0 && q.size == 0 {
			return Split{}, xerrors.Errorf("%v split is empty although its ratio is %v: %w", q.name, q.ratio, ErrDataIntegrity)
		}
	}
	return s, nil
}
