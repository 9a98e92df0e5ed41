package output

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"orderscout/config"
	"orderscout/harvest"
)

// pointWriter is the part of api.WriteAPIBlocking the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes one point per order. Orders whose date cannot be parsed are
// stamped with the run time.
type Influx struct {
	w           pointWriter
	measurement string
	log         *zap.Logger
	now         func() time.Time
	close       func()
}

// NewInflux connects a blocking write API for cfg's org and bucket.
func NewInflux(cfg config.Influx, log *zap.Logger) *Influx {
	if log == nil {
		log = zap.NewNop()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		w:           client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		log:         log,
		now:         time.Now,
		close:       client.Close,
	}
}

// Close releases the client.
func (s *Influx) Close() {
	if s.close != nil {
		s.close()
	}
}

// Emit writes one point per order in a single blocking write. No orders,
// no write.
func (s *Influx) Emit(ctx context.Context, orders []harvest.Order) error {
	if len(orders) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(orders))
	for _, o := range orders {
		points = append(points, s.point(o))
	}
	if err := s.w.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing orders to InfluxDB: %w", err)
	}
	s.log.Info("Orders written to InfluxDB", zap.Int("points", len(points)))
	return nil
}

func (s *Influx) point(o harvest.Order) *write.Point {
	at, dated := ParseOrderDate(o.OrderDate)
	if !dated {
		at = s.now()
	}
	p := influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("year", strconv.Itoa(at.Year())).
		AddTag("dated", strconv.FormatBool(dated)).
		AddField("item_count", len(o.Items)).
		SetTime(at)
	if amount, ok := ParseAmount(o.Total); ok {
		p.AddField("total", amount)
	}
	if len(o.Items) > 0 {
		p.AddField("first_product", o.Items[0].ProductName)
	}
	if o.OrderDate != "" {
		p.AddField("order_date", o.OrderDate)
	}
	return p
}

var amountPattern = regexp.MustCompile(`\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

// ParseAmount reads the first money amount in s, e.g. "$1,234.56".
func ParseAmount(s string) (float64, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"2006-01-02",
}

// ParseOrderDate parses the date formats order history pages use.
func ParseOrderDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
