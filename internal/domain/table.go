package domain

import (
	"math"
	"sort"
)

// ReturnTable is a date-ascending table of periodic returns, one column per
// asset. Missing observations are stored as NaN.
type ReturnTable struct {
	Dates  []string             `json:"dates"`
	Assets []string             `json:"assets"`
	Data   map[string][]float64 `json:"data"`
}

// NewReturnTable builds a table from column data. Column order follows the
// assets slice; every column must have len(dates) values.
func NewReturnTable(dates []string, assets []string, data map[string][]float64) *ReturnTable {
	return &ReturnTable{Dates: dates, Assets: assets, Data: data}
}

// NumPeriods returns the number of rows in the table.
func (t *ReturnTable) NumPeriods() int {
	return len(t.Dates)
}

// Column returns the series for one asset, or nil when absent.
func (t *ReturnTable) Column(asset string) []float64 {
	return t.Data[asset]
}

// HasAsset reports whether the table carries a column for the asset.
func (t *ReturnTable) HasAsset(asset string) bool {
	_, ok := t.Data[asset]
	return ok
}

// Select returns a new table restricted to the given assets, keeping only
// those that exist. Row order is unchanged.
func (t *ReturnTable) Select(assets []string) *ReturnTable {
	kept := make([]string, 0, len(assets))
	data := make(map[string][]float64, len(assets))
	for _, a := range assets {
		if col, ok := t.Data[a]; ok {
			kept = append(kept, a)
			data[a] = col
		}
	}
	return &ReturnTable{Dates: t.Dates, Assets: kept, Data: data}
}

// IntersectDates aligns two tables on their common dates, preserving
// ascending order. Both returned tables share the same date index.
func (t *ReturnTable) IntersectDates(other *ReturnTable) (*ReturnTable, *ReturnTable) {
	idx := make(map[string]int, len(other.Dates))
	for i, d := range other.Dates {
		idx[d] = i
	}
	var common []string
	var left, right []int
	for i, d := range t.Dates {
		if j, ok := idx[d]; ok {
			common = append(common, d)
			left = append(left, i)
			right = append(right, j)
		}
	}
	return t.takeRows(common, left), other.takeRows(common, right)
}

func (t *ReturnTable) takeRows(dates []string, rows []int) *ReturnTable {
	data := make(map[string][]float64, len(t.Assets))
	for _, a := range t.Assets {
		src := t.Data[a]
		col := make([]float64, len(rows))
		for k, r := range rows {
			col[k] = src[r]
		}
		data[a] = col
	}
	assets := make([]string, len(t.Assets))
	copy(assets, t.Assets)
	return &ReturnTable{Dates: dates, Assets: assets, Data: data}
}

// PortfolioReturns computes the weighted return series for the given weights.
// Assets absent from the table are skipped; NaN observations contribute zero.
func (t *ReturnTable) PortfolioReturns(weights map[string]float64) []float64 {
	out := make([]float64, len(t.Dates))
	for asset, w := range weights {
		col, ok := t.Data[asset]
		if !ok {
			continue
		}
		for i, v := range col {
			if !math.IsNaN(v) {
				out[i] += w * v
			}
		}
	}
	return out
}

// ValidRows returns the row indices where every listed asset has a non-NaN
// observation.
func (t *ReturnTable) ValidRows(assets []string) []int {
	var rows []int
	for i := range t.Dates {
		ok := true
		for _, a := range assets {
			col, present := t.Data[a]
			if !present || math.IsNaN(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// NamedMatrix is a square matrix indexed by asset name.
type NamedMatrix struct {
	Names []string
	index map[string]int
	Vals  [][]float64
}

// NewNamedMatrix builds a NamedMatrix over the given names, values initialized
// to zero.
func NewNamedMatrix(names []string) *NamedMatrix {
	n := len(names)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	m := &NamedMatrix{Names: append([]string(nil), names...), Vals: vals}
	m.reindex()
	return m
}

func (m *NamedMatrix) reindex() {
	m.index = make(map[string]int, len(m.Names))
	for i, n := range m.Names {
		m.index[n] = i
	}
}

// Index returns the row/column position of a name.
func (m *NamedMatrix) Index(name string) (int, bool) {
	if m.index == nil {
		m.reindex()
	}
	i, ok := m.index[name]
	return i, ok
}

// At returns the entry for a pair of names and whether both names exist.
func (m *NamedMatrix) At(a, b string) (float64, bool) {
	i, ok1 := m.Index(a)
	j, ok2 := m.Index(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	return m.Vals[i][j], true
}

// Set stores an entry for a pair of names, ignoring unknown names.
func (m *NamedMatrix) Set(a, b string, v float64) {
	i, ok1 := m.Index(a)
	j, ok2 := m.Index(b)
	if ok1 && ok2 {
		m.Vals[i][j] = v
	}
}

// Submatrix extracts the entries for the given names in the given order.
// Pairs missing from the matrix are filled with fill (diagonal with 1).
func (m *NamedMatrix) Submatrix(names []string, fill float64) [][]float64 {
	n := len(names)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			if i == j {
				out[i][j] = 1
				continue
			}
			if v, ok := m.At(names[i], names[j]); ok {
				out[i][j] = v
			} else {
				out[i][j] = fill
			}
		}
	}
	return out
}

// BetaMatrix holds factor loadings per security.
type BetaMatrix struct {
	Securities []string
	Factors    []string
	Vals       map[string][]float64
}

// Row returns the loadings for one security in factor order, or a zero row
// when the security is absent.
func (b *BetaMatrix) Row(security string) []float64 {
	if row, ok := b.Vals[security]; ok {
		return row
	}
	return make([]float64, len(b.Factors))
}

// SortedKeys returns map keys in deterministic order.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
