package dataset

import "golang.org/x/xerrors"

// ErrConfiguration marks fatal configuration mistakes detected before
// any training step (malformed split ratios, column-set mismatches,
// missing required artifacts).
var ErrConfiguration = xerrors.New("configuration error")

// ErrDataIntegrity marks fatal data problems such as an empty join
// result or a degenerate partition.
var ErrDataIntegrity = xerrors.New("data integrity error")
