// Package metrics exposes the activity of an exchange.Socket to Prometheus.
package metrics

import (
	"context"
	"fmt"

	"github.com/fatih/structs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scitags/flowd-nl/exchange"
)

const (
	namespace = "netlink"
	subsystem = "exchange"
)

// Source is anything reporting exchange statistics.
type Source interface {
	Stats() exchange.Stats
}

// Register adds a collector for every field of exchange.Stats to reg. Each
// one reads a fresh snapshot from src when scraped. Fields are exported as
// counters or gauges according to their metric tag.
func Register(reg prometheus.Registerer, src Source) error {
	i := 0
	for _, f := range structs.Fields(exchange.Stats{}) {
		name, kind, help := f.Tag("structs"), f.Tag("metric"), f.Tag("help")

		read := func() float64 {
			return value(structs.Map(src.Stats())[name])
		}

		var c prometheus.Collector
		switch kind {
		case "counter":
			c = prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name + "_total",
				Help:      help,
			}, read)
		case "gauge":
			c = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			}, read)
		default:
			return fmt.Errorf("field %s has unknown metric kind %q", f.Name(), kind)
		}

		if err := reg.Register(c); err != nil {
			return fmt.Errorf("error registering %s: %w", name, err)
		}
		i++
	}
	logger.Log(context.Background(), LevelTrace, "registered collectors", "i", i)

	return nil
}

func value(v any) float64 {
	switch n := v.(type) {
	case uint64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
