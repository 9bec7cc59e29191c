package tables

import (
	"encoding/csv"
	"os"
	"strconv"

	"go-ml.dev/pkg/zorros"
)

/*
Table is a sample-keyed numeric table loaded from a tab-separated file.
The first file column is always sample_id; Names holds the remaining
column names and every row in Rows is aligned with Names.
*/
type Table struct {
	Names     []string
	SampleIDs []string
	Rows      [][]float64
}

/*
Labels is a sample-keyed categorical table (e.g. cancer types).
*/
type Labels struct {
	SampleIDs []string
	Values    []string
}

func (t *Table) Len() int { return len(t.SampleIDs) }

/*
ReadTSV reads a tab-separated table whose first column is sample_id
and whose remaining columns are numeric.
*/
func ReadTSV(path string) (*Table, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	t := &Table{Names: records[0][1:]}
	t.SampleIDs = make([]string, 0, len(records)-1)
	t.Rows = make([][]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			v, e := strconv.ParseFloat(cell, 64)
			if e != nil {
				return nil, zorros.Wrapf(e, "%v: bad numeric value %q at row %d column %q", path, cell, i+1, t.Names[j])
			}
			row[j] = v
		}
		t.SampleIDs = append(t.SampleIDs, rec[0])
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

/*
ReadLabelsTSV reads a two-column tab-separated table mapping sample_id
to a categorical string value.
*/
func ReadLabelsTSV(path string) (*Labels, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	l := &Labels{}
	for i, rec := range records[1:] {
		if len(rec) != 2 {
			return nil, zorros.Errorf("%v: expected 2 columns at row %d, got %d", path, i+1, len(rec))
		}
		l.SampleIDs = append(l.SampleIDs, rec[0])
		l.Values = append(l.Values, rec[1])
	}
	return l, nil
}

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer f.Close()
	rd := csv.NewReader(f)
	rd.Comma = '\t'
	records, err := rd.ReadAll()
	if err != nil {
		return nil, zorros.Wrapf(err, "%v: %v", path, err.Error())
	}
	if len(records) < 1 {
		return nil, zorros.Errorf("%v: empty table", path)
	}
	return records, nil
}

/*
Lookup builds a sample_id index of the labels.
*/
func (l *Labels) Lookup() map[string]string {
	m := make(map[string]string, len(l.SampleIDs))
	for i, id := range l.SampleIDs {
		m[id] = l.Values[i]
	}
	return m
}

/*
Filter returns a table containing only the rows whose sample_id
satisfies keep. Row order is preserved.
*/
func (t *Table) Filter(keep func(sampleID string) bool) *Table {
	r := &Table{Names: t.Names}
	for i, id := range t.SampleIDs {
		if keep(id) {
			r.SampleIDs = append(r.SampleIDs, id)
			r.Rows = append(r.Rows, t.Rows[i])
		}
	}
	return r
}

/*
InnerJoin joins two tables on sample_id keeping only samples present in
both. The result follows the left table's row order and concatenates the
right table's columns after the left's.
*/
func InnerJoin(a, b *Table) *Table {
	bx := make(map[string]int, len(b.SampleIDs))
	for i, id := range b.SampleIDs {
		bx[id] = i
	}
	r := &Table{Names: append(append([]string{}, a.Names...), b.Names...)}
	for i, id := range a.SampleIDs {
		j, ok := bx[id]
		if !ok {
			continue
		}
		row := make([]float64, 0, len(a.Names)+len(b.Names))
		row = append(row, a.Rows[i]...)
		row = append(row, b.Rows[j]...)
		r.SampleIDs = append(r.SampleIDs, id)
		r.Rows = append(r.Rows, row)
	}
	return r
}
