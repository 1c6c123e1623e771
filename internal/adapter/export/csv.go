package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

const dateLayout = "2006-01-02"

// WriteTimeSeries writes a two-column CSV: date and the index value.
// The header names the index, e.g. "date,NDVI".
func WriteTimeSeries(w io.Writer, index string, series domain.TimeSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", index}); err != nil {
		return err
	}
	for _, s := range series.Samples {
		row := []string{s.Date.UTC().Format(dateLayout), strconv.FormatFloat(s.Value, 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTimeSeries parses a CSV written by WriteTimeSeries and returns the index
// name from its header. Rows must have strictly increasing dates.
func ReadTimeSeries(r io.Reader) (domain.TimeSeries, string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.TimeSeries{}, "", errors.New("time series csv is empty")
	}
	if err != nil {
		return domain.TimeSeries{}, "", fmt.Errorf("read header: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(header[0]), "date") || strings.TrimSpace(header[1]) == "" {
		return domain.TimeSeries{}, "", fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}
	index := strings.TrimSpace(header[1])

	samples := []domain.Sample{}
	var prev time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.TimeSeries{}, "", fmt.Errorf("line %d: %w", line, err)
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return domain.TimeSeries{}, "", fmt.Errorf("line %d: date: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return domain.TimeSeries{}, "", fmt.Errorf("line %d: %s: %w", line, index, err)
		}
		if len(samples) > 0 && !date.After(prev) {
			return domain.TimeSeries{}, "", fmt.Errorf("line %d: date %s does not follow %s", line, date.Format(dateLayout), prev.Format(dateLayout))
		}
		prev = date
		samples = append(samples, domain.Sample{Date: date, Value: value, Valid: true})
	}

	series := domain.TimeSeries{Samples: samples}
	if err := series.Validate(); err != nil {
		return domain.TimeSeries{}, "", err
	}
	return series, index, nil
}
