package cube

import (
	"fmt"
	"strconv"
)

// Reshape turns the CSV result of an observation query into a Table. Dimension columns are located
// through the query's bindings and named after each dimension's clean label; every row gets the
// index cleanLabel+ordinal, and the raw obs column is dropped.
func Reshape(text string, q ObservationQuery, cleanLabel string) (*Table, error) {
	header, records, err := readCSV(text)
	if err != nil {
		return nil, err
	}

	dimCols := make([]int, len(q.Bindings))
	names := make([]string, len(q.Bindings))
	for i, b := range q.Bindings {
		dimCols[i] = columnIndex(header, b.Variable)
		if dimCols[i] < 0 {
			return nil, fmt.Errorf("%w: missing column %q for dimension %q", ErrParse, b.Variable, b.Dimension.Label)
		}
		names[i] = b.Dimension.CleanLabel
	}
	measureCol := columnIndex(header, ColumnMeasureType)
	valueCol := columnIndex(header, ColumnValue)
	if measureCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("%w: result lacks %s/%s columns (header %v)", ErrParse, ColumnMeasureType, ColumnValue, header)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no observations for %s", ErrEmptyResult, cleanLabel)
	}

	rows := make([]ObservationRow, len(records))
	for n, rec := range records {
		values := make([]string, len(dimCols))
		for i, c := range dimCols {
			values[i] = rec[c]
		}
		rows[n] = ObservationRow{
			Index:       cleanLabel + strconv.Itoa(n),
			Values:      values,
			MeasureType: rec[measureCol],
			Value:       rec[valueCol],
		}
	}

	return &Table{
		Dataset:    DatasetRef{CleanLabel: cleanLabel},
		Dimensions: names,
		Rows:       rows,
	}, nil
}
