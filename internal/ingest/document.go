package ingest

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrMalformedDocument = errors.New("malformed forecast document")

// Series is one time axis paired with one value array. The two slices come
// straight from the payload and are not guaranteed to be the same length.
type Series struct {
	TimeDefines []string
	Values      []string
}

// OptionalSeries is either a present Series or absent. The zero value is absent.
type OptionalSeries struct {
	Series Series
	OK     bool
}

func Present(s Series) OptionalSeries {
	return OptionalSeries{Series: s, OK: true}
}

var Absent = OptionalSeries{}

// Len returns the number of values, or 0 when absent.
func (o OptionalSeries) Len() int {
	if !o.OK {
		return 0
	}
	return len(o.Series.Values)
}

// At returns the value at index i, or false when the series is absent or
// does not cover i.
func (o OptionalSeries) At(i int) (string, bool) {
	if !o.OK || i < 0 || i >= len(o.Series.Values) {
		return "", false
	}
	return o.Series.Values[i], true
}

// Document is a read-only view of one area's forecast payload: a JSON array of
// time-series blocks, each with its own timeSeries list.
type Document struct {
	root gjson.Result
}

// ParseDocument validates the outer structure of a forecast payload.
func ParseDocument(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedDocument)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: top level is not an array", ErrMalformedDocument)
	}
	if !root.Get("0.timeSeries").IsArray() {
		return nil, fmt.Errorf("%w: missing timeSeries in first block", ErrMalformedDocument)
	}
	if !root.Get("0.timeSeries.0.areas").IsArray() {
		return nil, fmt.Errorf("%w: missing areas in first time series", ErrMalformedDocument)
	}
	return &Document{root: root}, nil
}

// WeatherSeries returns the short-range weather text series: the first area of
// the first time series in the first block.
func (d *Document) WeatherSeries() OptionalSeries {
	ts := d.root.Get("0.timeSeries.0")
	dates, ok := stringArray(ts.Get("timeDefines"))
	if !ok {
		return Absent
	}
	weathers, ok := stringArray(ts.Get("areas.0.weathers"))
	if !ok {
		return Absent
	}
	return Present(Series{TimeDefines: dates, Values: weathers})
}

func (d *Document) TempMinSeries() OptionalSeries {
	return d.scanAreaField("tempsMin")
}

func (d *Document) TempMaxSeries() OptionalSeries {
	return d.scanAreaField("tempsMax")
}

// scanAreaField walks every time series of every block in document order and
// returns the first one whose first area carries field as an array. Block
// positions differ between area types, so this must stay a linear scan.
func (d *Document) scanAreaField(field string) OptionalSeries {
	found := Absent
	d.root.ForEach(func(_, block gjson.Result) bool {
		block.Get("timeSeries").ForEach(func(_, ts gjson.Result) bool {
			values, ok := stringArray(ts.Get("areas.0." + field))
			if !ok {
				return true
			}
			dates, _ := stringArray(ts.Get("timeDefines"))
			found = Present(Series{TimeDefines: dates, Values: values})
			return false
		})
		return !found.OK
	})
	return found
}

func stringArray(r gjson.Result) ([]string, bool) {
	if !r.IsArray() {
		return nil, false
	}
	items := r.Array()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	return out, true
}
