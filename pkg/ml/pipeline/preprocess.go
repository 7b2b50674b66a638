package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/models"
)

// ErrSchemaMismatch reports a record whose columns or column types differ
// from what the preprocessor was fit on.
var ErrSchemaMismatch = errors.New("schema mismatch")

const missingCategory = "MISSING"

// ColumnSpec declares a training column and whether it is numeric.
type ColumnSpec struct {
	Name    string
	Numeric bool
}

// NumericColumn is imputed with the median and standardized.
type NumericColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalColumn is one-hot encoded over the categories seen at fit time.
// Unseen categories encode as all zeros.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

type Preprocessor struct {
	Numeric     []NumericColumn     `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`
}

func FitPreprocessor(columns []ColumnSpec, rows []models.Record) (*Preprocessor, error) {
	if len(columns) == 0 {
		return nil, errors.New("no numeric or categorical features found")
	}
	p := &Preprocessor{}
	for _, col := range columns {
		if col.Numeric {
			nc, err := fitNumeric(col.Name, rows)
			if err != nil {
				return nil, err
			}
			p.Numeric = append(p.Numeric, nc)
			continue
		}
		p.Categorical = append(p.Categorical, fitCategorical(col.Name, rows))
	}
	return p, nil
}

func fitNumeric(name string, rows []models.Record) (NumericColumn, error) {
	var observed []float64
	for _, row := range rows {
		v := row[name]
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return NumericColumn{}, fmt.Errorf("%w: column %s: cannot convert %q to float", ErrSchemaMismatch, name, fmt.Sprint(v))
		}
		observed = append(observed, f)
	}

	col := NumericColumn{Name: name, Scale: 1}
	if len(observed) == 0 {
		return col, nil
	}
	col.Median = median(observed)

	// statistics are taken after imputation, as the scaler sees imputed data
	var sum float64
	for _, row := range rows {
		sum += imputed(row[name], col.Median)
	}
	col.Mean = sum / float64(len(rows))
	var variance float64
	for _, row := range rows {
		d := imputed(row[name], col.Median) - col.Mean
		variance += d * d
	}
	variance /= float64(len(rows))
	if std := math.Sqrt(variance); std > 0 {
		col.Scale = std
	}
	return col, nil
}

func imputed(v interface{}, fallback float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return fallback
}

func fitCategorical(name string, rows []models.Record) CategoricalColumn {
	seen := map[string]struct{}{}
	for _, row := range rows {
		seen[categoryOf(row[name])] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return CategoricalColumn{Name: name, Categories: cats}
}

// Columns lists the input columns in encoding order.
func (p *Preprocessor) Columns() []string {
	out := make([]string, 0, len(p.Numeric)+len(p.Categorical))
	for _, c := range p.Numeric {
		out = append(out, c.Name)
	}
	for _, c := range p.Categorical {
		out = append(out, c.Name)
	}
	return out
}

// Width is the length of the encoded feature vector.
func (p *Preprocessor) Width() int {
	w := len(p.Numeric)
	for _, c := range p.Categorical {
		w += len(c.Categories)
	}
	return w
}

// Transform encodes one record. The record must carry exactly the fit-time
// columns; nil values are imputed.
func (p *Preprocessor) Transform(row models.Record) ([]float64, error) {
	if err := p.checkColumns(row); err != nil {
		return nil, err
	}

	out := make([]float64, 0, p.Width())
	for _, c := range p.Numeric {
		v := row[c.Name]
		f := c.Median
		if v != nil {
			var ok bool
			f, ok = toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: column %s: cannot convert %q to float", ErrSchemaMismatch, c.Name, fmt.Sprint(v))
			}
		}
		out = append(out, (f-c.Mean)/c.Scale)
	}
	for _, c := range p.Categorical {
		value := categoryOf(row[c.Name])
		pos := sort.SearchStrings(c.Categories, value)
		for i := range c.Categories {
			if i == pos && c.Categories[i] == value {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

func (p *Preprocessor) checkColumns(row models.Record) error {
	expected := make(map[string]struct{}, len(p.Numeric)+len(p.Categorical))
	for _, name := range p.Columns() {
		expected[name] = struct{}{}
	}

	var missing, unexpected []string
	for name := range expected {
		if _, ok := row[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range row {
		if _, ok := expected[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "columns are missing: "+strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		parts = append(parts, "columns were not seen at fit time: "+strings.Join(unexpected, ", "))
	}
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
}

func (p *Preprocessor) validate() error {
	for _, c := range p.Numeric {
		if c.Scale == 0 || math.IsNaN(c.Scale) {
			return fmt.Errorf("numeric column %s has invalid scale", c.Name)
		}
	}
	for _, c := range p.Categorical {
		if !sort.StringsAreSorted(c.Categories) {
			return fmt.Errorf("categorical column %s is not sorted", c.Name)
		}
	}
	if len(p.Numeric)+len(p.Categorical) == 0 {
		return errors.New("preprocessor has no columns")
	}
	return nil
}

func categoryOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return missingCategory
	case string:
		if val == "" {
			return missingCategory
		}
		return val
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
