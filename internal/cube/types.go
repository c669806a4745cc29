package cube

// DatasetRef identifies the cube being loaded. CleanLabel is the graph identity of the dataset node
// and the prefix of every observation index.
type DatasetRef struct {
	URI        string
	Label      string
	CleanLabel string
}

// Dimension is one classificatory axis of a cube.
type Dimension struct {
	PredicateURI string
	Label        string
	CleanLabel   string
}

// Binding pairs a dimension with the query variable that carries its label value.
type Binding struct {
	Dimension Dimension
	Variable  string
}

// ObservationQuery is the generated observation SELECT together with its dimension bindings,
// in declaration order.
type ObservationQuery struct {
	Text     string
	Bindings []Binding
}

// Fixed column names of a reshaped table.
const (
	ColumnIndex       = "index"
	ColumnMeasureType = "measureType"
	ColumnValue       = "value"
	columnObs         = "obs"
)

// ObservationRow is one flattened observation. Values is aligned with Table.Dimensions.
type ObservationRow struct {
	Index       string
	Values      []string
	MeasureType string
	Value       string
}

// Table is the reshaped observation set of one pipeline run.
type Table struct {
	Dataset    DatasetRef
	Dimensions []string
	Rows       []ObservationRow
}

// Columns returns the table header: index, the dimension columns, measureType and value.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Dimensions)+3)
	cols = append(cols, ColumnIndex)
	cols = append(cols, t.Dimensions...)
	return append(cols, ColumnMeasureType, ColumnValue)
}

// Distinct returns the distinct values of dimension column col in first-seen order.
func (t *Table) Distinct(col int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range t.Rows {
		v := row.Values[col]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Limit truncates the table to its first n rows. n <= 0 leaves it untouched.
func (t *Table) Limit(n int) {
	if n > 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}
