package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// Options controls how LoadCSV reads a delimited file.
type Options struct {
	// Target is the header name of the target column. Empty selects the
	// first column.
	Target string
	// Delimiter defaults to ','.
	Delimiter rune
	// Comment marks lines to skip; zero disables comments.
	Comment rune
}

// LoadCSV reads a delimited file with a header row. Every column other
// than the target must be numeric.
func LoadCSV(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", path)
	}
	return ds, nil
}

// ReadCSV is LoadCSV over an io.Reader.
func ReadCSV(r io.Reader, opts Options) (*Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.Comment = opts.Comment
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) < 2 {
		return nil, errors.NewValueError("ReadCSV", "need a target column and at least one feature column")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	targetCol := 0
	if opts.Target != "" {
		targetCol = -1
		for i, h := range header {
			if h == opts.Target {
				targetCol = i
				break
			}
		}
		if targetCol < 0 {
			return nil, errors.NewValidationError("target", "column not found in header", opts.Target)
		}
	}

	featureNames := make([]string, 0, len(header)-1)
	for i, h := range header {
		if i != targetCol {
			featureNames = append(featureNames, h)
		}
	}

	var data, y []float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(header) {
			return nil, errors.Wrapf(errors.NewDimensionError("ReadCSV", len(header), len(record), 1), "row %d", line)
		}
		for i, field := range record {
			v, perr := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if perr != nil {
				return nil, errors.NewValueError("ReadCSV",
					fmt.Sprintf("row %d, column %q: cannot parse %q as a number", line, header[i], field))
			}
			if i == targetCol {
				y = append(y, v)
			} else {
				data = append(data, v)
			}
		}
	}
	if len(y) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no data rows")
	}

	return New(mat.NewDense(len(y), len(featureNames), data), mat.NewVecDense(len(y), y), featureNames, header[targetCol])
}
