package cube

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readCSV parses a SPARQL CSV result into its header and data records.
func readCSV(text string) ([]string, [][]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, fmt.Errorf("%w: empty result", ErrParse)
	}

	r := csv.NewReader(strings.NewReader(text))
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: missing header", ErrParse)
		}
		return nil, nil, fmt.Errorf("%w: header: %v", ErrParse, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return header, records, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
