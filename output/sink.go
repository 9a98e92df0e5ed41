// Package output delivers harvested orders: a JSON file, the console, and
// optionally an InfluxDB bucket.
package output

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"orderscout/harvest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sink receives the final list of orders once per run.
type Sink interface {
	Emit(ctx context.Context, orders []harvest.Order) error
}

// Multi emits to every sink, even after one fails, and joins the errors.
type Multi []Sink

// Emit calls every sink in order.
func (m Multi) Emit(ctx context.Context, orders []harvest.Order) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, orders); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Marshal renders orders the way every sink writes them: an indented JSON
// array, "[]" when there are none.
func Marshal(orders []harvest.Order) ([]byte, error) {
	if orders == nil {
		orders = []harvest.Order{}
	}
	return json.MarshalIndent(orders, "", "  ")
}
