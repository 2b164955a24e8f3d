// Package dataload reads the capital-market-assumption tables, correlation
// matrix, return series, and factor model inputs from CSV files, falling back
// to deterministic mock data when a file is missing.
package dataload

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/domain"
	"github.com/quantfolio/riskapi/pkg/formulas"
)

// Header aliases normalized before the required-column check.
var cmaAliases = map[string]string{
	"FORECAST RETURN":     "RETURN",
	"EXPECTED RETURN":     "RETURN",
	"EXP_RETURN":          "RETURN",
	"RET":                 "RETURN",
	"FORECAST VOLATILITY": "RISK",
	"VOLATILITY":          "RISK",
	"VOL":                 "RISK",
	"STD":                 "RISK",
	"ASSET":               "ASSET CLASS",
	"NAME":                "ASSET CLASS",
	"SECURITY":            "ASSET CLASS",
}

// Loader reads input tables from a data directory. A nil store disables the
// sqlite return cache.
type Loader struct {
	dataDir string
	store   *ReturnStore
	log     zerolog.Logger
}

// NewLoader creates a loader rooted at dataDir.
func NewLoader(dataDir string, store *ReturnStore, log zerolog.Logger) *Loader {
	return &Loader{
		dataDir: dataDir,
		store:   store,
		log:     log.With().Str("component", "dataload").Logger(),
	}
}

// LoadCMA reads the capital market assumptions table. Column headers are
// normalized through the alias map; ASSET CLASS, RETURN and RISK are required.
func (l *Loader) LoadCMA() ([]domain.AssetAssumption, error) {
	path := l.firstExisting("cma_data.csv", "CMA_data.csv")
	if path == "" {
		l.log.Warn().Msg("CMA file not found, using mock data")
		return mockCMA(), nil
	}

	rows, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CMA file %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CMA file %s has no data rows", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := strings.ToUpper(strings.TrimSpace(h))
		if alias, ok := cmaAliases[name]; ok {
			name = alias
		}
		cols[name] = i
	}
	for _, required := range []string{"ASSET CLASS", "RETURN", "RISK"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CMA file %s is missing column %q", path, required)
		}
	}

	assets := make([]domain.AssetAssumption, 0, len(rows)-1)
	for _, row := range rows[1:] {
		asset := domain.AssetAssumption{
			Name:   strings.TrimSpace(cell(row, cols["ASSET CLASS"])),
			Return: parseFloat(cell(row, cols["RETURN"])),
			Risk:   parseFloat(cell(row, cols["RISK"])),
			CapMax: 1.0,
		}
		if asset.Name == "" {
			continue
		}
		if i, ok := cols["CAP_MAX"]; ok {
			if v := parseFloat(cell(row, i)); !math.IsNaN(v) {
				asset.CapMax = v
			}
		}
		if i, ok := cols["RISK ALLOCATION"]; ok {
			asset.Bucket = strings.ToUpper(strings.TrimSpace(cell(row, i)))
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// LoadCorrelation reads the asset correlation matrix and cleans it:
// symmetrize, clip to [-1, 1], repair to positive semidefinite, and force a
// unit diagonal.
func (l *Loader) LoadCorrelation() (*domain.NamedMatrix, error) {
	path := l.firstExisting("correlation_matrix.csv", "corr_matrix.csv")
	if path == "" {
		l.log.Warn().Msg("Correlation file not found, using mock data")
		return mockCorrelation(), nil
	}

	names, vals, err := readIndexedMatrix(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read correlation matrix %s: %w", path, err)
	}

	n := len(names)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (vals[i][j] + vals[j][i]) / 2
			if math.IsNaN(v) {
				v = 0
			}
			v = math.Max(-1, math.Min(1, v))
			vals[i][j] = v
			vals[j][i] = v
		}
		vals[i][i] = 1
	}
	vals = formulas.RepairCorrelation(vals, 1e-10)

	m := domain.NewNamedMatrix(names)
	for i, a := range names {
		for j, b := range names {
			m.Set(a, b, vals[i][j])
		}
	}
	return m, nil
}

// LoadReturns reads the monthly return series. The date column is detected by
// header (DATE, Date or date); without one, month-end dates are generated.
// Non-numeric cells become NaN, rows with no observations are dropped, and
// rows are sorted by date. When no file exists the sqlite cache is tried
// before falling back to mock data.
func (l *Loader) LoadReturns() (*domain.ReturnTable, error) {
	path := l.firstExisting("return_series.csv", "returns.csv")
	if path == "" {
		if l.store != nil {
			if cached, err := l.store.LoadReturns(); err == nil && cached.NumPeriods() > 0 {
				l.log.Info().Int("periods", cached.NumPeriods()).Msg("Returns loaded from sqlite cache")
				return cached, nil
			}
		}
		l.log.Warn().Msg("Return series not found, using mock data")
		return mockReturns(mockReturnPeriods), nil
	}

	rows, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read return series %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("return series %s has no data rows", path)
	}

	header := rows[0]
	dateCol := -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "DATE", "Date", "date":
			dateCol = i
		}
	}

	var assets []string
	assetCols := make([]int, 0, len(header))
	for i, h := range header {
		if i == dateCol {
			continue
		}
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		assets = append(assets, name)
		assetCols = append(assetCols, i)
	}

	type record struct {
		date string
		vals []float64
	}
	records := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		vals := make([]float64, len(assets))
		allNaN := true
		for k, col := range assetCols {
			vals[k] = parseFloat(cell(row, col))
			if !math.IsNaN(vals[k]) {
				allNaN = false
			}
		}
		if allNaN {
			continue
		}
		records = append(records, record{date: strings.TrimSpace(cell(row, dateCol)), vals: vals})
	}

	if dateCol == -1 {
		generated := monthEndDates(len(records))
		for i := range records {
			records[i].date = generated[i]
		}
	} else {
		sort.SliceStable(records, func(i, j int) bool { return records[i].date < records[j].date })
	}

	dates := make([]string, len(records))
	data := make(map[string][]float64, len(assets))
	for _, a := range assets {
		data[a] = make([]float64, len(records))
	}
	for i, rec := range records {
		dates[i] = rec.date
		for k, a := range assets {
			data[a][i] = rec.vals[k]
		}
	}
	return domain.NewReturnTable(dates, assets, data), nil
}

// LoadBetas reads the latest security-factor beta matrix from the
// Covariance_Matrix directory (betas_*.csv, lexically last wins).
func (l *Loader) LoadBetas() (*domain.BetaMatrix, error) {
	path := l.latestMatching("betas_*.csv")
	if path == "" {
		l.log.Warn().Msg("Beta matrix not found, using mock data")
		return mockBetas(), nil
	}

	factors, securities, vals, err := readIndexedRows(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read beta matrix %s: %w", path, err)
	}

	data := make(map[string][]float64, len(securities))
	for i, s := range securities {
		data[s] = vals[i]
	}
	return &domain.BetaMatrix{Securities: securities, Factors: factors, Vals: data}, nil
}

// LoadFactorCov reads the latest factor covariance matrix
// (factor_cov_*.csv, lexically last wins).
func (l *Loader) LoadFactorCov() (*domain.NamedMatrix, error) {
	path := l.latestMatching("factor_cov_*.csv")
	if path == "" {
		l.log.Warn().Msg("Factor covariance not found, using mock data")
		return mockFactorCov(), nil
	}

	names, vals, err := readIndexedMatrix(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read factor covariance %s: %w", path, err)
	}
	m := domain.NewNamedMatrix(names)
	for i, a := range names {
		for j, b := range names {
			m.Set(a, b, vals[i][j])
		}
	}
	return m, nil
}

func (l *Loader) firstExisting(names ...string) string {
	for _, name := range names {
		path := filepath.Join(l.dataDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func (l *Loader) latestMatching(pattern string) string {
	matches, err := filepath.Glob(filepath.Join(l.dataDir, "Covariance_Matrix", pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// readIndexedMatrix parses a CSV whose first column is the row index and whose
// header names the columns, assuming a square layout in header order.
func readIndexedMatrix(path string) ([]string, [][]float64, error) {
	_, names, vals, err := readIndexedRows(path)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range vals {
		if len(row) != len(names) {
			return nil, nil, fmt.Errorf("matrix in %s is not square", path)
		}
	}
	return names, vals, nil
}

// readIndexedRows parses a CSV whose first column is the row index; it returns
// the column header (index cell dropped), the row names, and the values.
func readIndexedRows(path string) ([]string, []string, [][]float64, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, nil, fmt.Errorf("file %s has no data rows", path)
	}

	header := make([]string, 0, len(rows[0])-1)
	for _, h := range rows[0][1:] {
		header = append(header, strings.TrimSpace(h))
	}

	names := make([]string, 0, len(rows)-1)
	vals := make([][]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		names = append(names, strings.TrimSpace(row[0]))
		parsed := make([]float64, len(row)-1)
		for i, c := range row[1:] {
			parsed[i] = parseFloat(c)
		}
		vals = append(vals, parsed)
	}
	return header, names, vals, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
