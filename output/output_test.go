package output

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orderscout/harvest"
)

var sample = []harvest.Order{
	{
		OrderDate: "March 3, 2026",
		Total:     "$1,012.99",
		Items:     []harvest.Item{{ProductName: "Standing desk", Link: "https://www.amazon.com/dp/B01"}},
	},
	{
		Items: []harvest.Item{
			{ProductName: "Cable", Link: "https://www.amazon.com/dp/B02"},
			{ProductName: "Clips", Link: "https://www.amazon.com/dp/B03"},
		},
	},
}

func TestMarshal(t *testing.T) {
	t.Run("empty is an array", func(t *testing.T) {
		data, err := Marshal(nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("field names", func(t *testing.T) {
		data, err := Marshal(sample[:1])
		require.NoError(t, err)
		assert.JSONEq(t, `[{
			"orderDate": "March 3, 2026",
			"total": "$1,012.99",
			"items": [{"productName": "Standing desk", "link": "https://www.amazon.com/dp/B01"}]
		}]`, string(data))
	})
}

func TestJSONFileReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "orders.json")
	sink := JSONFile{Path: path}

	require.NoError(t, sink.Emit(context.Background(), sample))
	require.NoError(t, sink.Emit(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
	assert.NoFileExists(t, path+".tmp")
}

func TestJSONFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, JSONFile{Path: path}.Emit(context.Background(), sample))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []harvest.Order
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sample, got)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Console{W: &buf, Table: true}.Emit(context.Background(), sample))

	out := buf.String()
	assert.Contains(t, out, `"productName": "Standing desk"`)
	assert.Contains(t, out, "First Product")
	assert.Contains(t, out, "1012.99")

	buf.Reset()
	require.NoError(t, Console{W: &buf, Table: true}.Emit(context.Background(), nil))
	assert.Equal(t, "[]\n", buf.String(), "no table for an empty result")
}

func TestTableRows(t *testing.T) {
	rows := tableRows(sample)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"March 3, 2026", "1012.99", "1", "Standing desk"}, rows[1])
	assert.Equal(t, []string{"N/A", "N/A", "2", "Cable"}, rows[2])
	assert.Equal(t, []string{"Total", "1012.99", "", ""}, rows[3])
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$12.99", 12.99, true},
		{"$ 1,234.50", 1234.50, true},
		{"Total: $7", 7, true},
		{"45.10", 45.10, true},
		{"", 0, false},
		{"N/A", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestParseOrderDate(t *testing.T) {
	for _, in := range []string{"March 3, 2026", "Mar 3, 2026", "3 March 2026", "03/03/2026", " 2026-03-03 "} {
		got, ok := ParseOrderDate(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), got, in)
	}
	_, ok := ParseOrderDate("yesterday")
	assert.False(t, ok)
}

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(ctx context.Context, p ...*write.Point) error {
	w.points = append(w.points, p...)
	return w.err
}

func fields(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tg := range p.TagList() {
		out[tg.Key] = tg.Value
	}
	return out
}

func TestInfluxPoints(t *testing.T) {
	w := &recordingWriter{}
	runAt := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)
	s := &Influx{w: w, measurement: "purchase", log: zaptest.NewLogger(t), now: func() time.Time { return runAt }}

	require.NoError(t, s.Emit(context.Background(), sample))
	require.Len(t, w.points, 2)

	dated := w.points[0]
	assert.Equal(t, "purchase", dated.Name())
	assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), dated.Time())
	assert.Equal(t, map[string]string{"year": "2026", "dated": "true"}, tags(dated))
	assert.Equal(t, map[string]any{
		"item_count":    int64(1),
		"total":         1012.99,
		"first_product": "Standing desk",
		"order_date":    "March 3, 2026",
	}, fields(dated))

	undated := w.points[1]
	assert.Equal(t, runAt, undated.Time())
	assert.Equal(t, "false", tags(undated)["dated"])
	assert.NotContains(t, fields(undated), "total")
}

func TestInfluxSkipsEmptyAndWrapsErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("unauthorized")}
	s := &Influx{w: w, measurement: "purchase", log: zaptest.NewLogger(t), now: time.Now}

	require.NoError(t, s.Emit(context.Background(), nil))
	assert.Empty(t, w.points)

	err := s.Emit(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

type failingSink struct{ err error }

func (f failingSink) Emit(context.Context, []harvest.Order) error { return f.err }

func TestMultiEmitsToEverySink(t *testing.T) {
	first := errors.New("disk full")
	var buf bytes.Buffer
	m := Multi{failingSink{first}, Console{W: &buf}}

	err := m.Emit(context.Background(), sample)
	require.ErrorIs(t, err, first)
	assert.NotEmpty(t, buf.String(), "later sinks still run")
}
