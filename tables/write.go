package tables

import (
	"encoding/csv"

	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros"
)

/*
WriteTSV writes a tab-separated table to the given output transactionally:
the data becomes visible only after the underlying Commit succeeds.
*/
func WriteTSV(out iokit.Output, header []string, rows [][]string) error {
	wh, err := out.Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	w := csv.NewWriter(wh)
	w.Comma = '\t'
	if err = w.Write(header); err != nil {
		return zorros.Trace(err)
	}
	for _, row := range rows {
		if err = w.Write(row); err != nil {
			return zorros.Trace(err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return zorros.Trace(err)
	}
	if err = wh.Commit(); err != nil {
		return zorros.Trace(err)
	}
	return nil
}
