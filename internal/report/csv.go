// Package report exports analysis results.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ayusman/hueassay/internal/sampler"
)

// Header is the first CSV record.
var Header = []string{"Time(s)", "HueReaction", "HueBackground"}

// ErrBadHeader is returned by ReadCSV when the first record is not Header.
var ErrBadHeader = errors.New("unexpected csv header")

// Row is one parsed CSV record, kept as the decimal strings that were written.
type Row struct {
	Time          string
	HueReaction   string
	HueBackground string
}

// WriteCSV writes series as CSV with fixed two-decimal values.
func WriteCSV(w io.Writer, series sampler.TimeSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, s := range series {
		record := []string{decimal(s.Time), decimal(s.HueReaction), decimal(s.HueBackground)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing sample at %s: %w", record[0], err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses CSV produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrBadHeader)
	}
	if err != nil {
		return nil, err
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, fmt.Errorf("%w: column %d is %q", ErrBadHeader, i, header[i])
		}
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		for _, field := range record {
			if _, err := strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", len(rows)+2, err)
			}
		}
		rows = append(rows, Row{Time: record[0], HueReaction: record[1], HueBackground: record[2]})
	}
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
