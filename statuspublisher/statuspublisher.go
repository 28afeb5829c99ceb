// Package statuspublisher periodically publishes a snapshot of the
// coordinator's state (mode, loop counters, diagnostic store) onto the bus
// so other services can observe the gateway without touching
// its internals directly.
package statuspublisher

import (
	"context"
	"time"

	"otgw-go/bus"
	"otgw-go/coordinator"
	"otgw-go/x/timex"
)

var topicConfig = bus.Topic{"config", "status"}
var topicStatus = bus.Topic{"status", "coordinator"}

const defaultInterval = 2 * time.Second

// Snapshot is the published payload shape.
type Snapshot struct {
	Mode          string             `json:"mode"`
	StatusCounter int                `json:"status_counter"`
	SpuriousCount uint64             `json:"spurious_count"`
	Diagnostics   map[string]float32 `json:"diagnostics"`
	TsMs          int64              `json:"ts_ms"`
}

type Service struct {
	coord *coordinator.Coordinator
}

func New(coord *coordinator.Coordinator) *Service { return &Service{coord: coord} }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	interval := defaultInterval
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.publish(conn)
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval_ms"]; ok {
					if ms, ok := iv.(float64); ok && ms > 0 {
						tick.Reset(time.Duration(ms) * time.Millisecond)
					}
				}
			}
		}
	}
}

func (s *Service) publish(conn *bus.Connection) {
	stats := s.coord.Stats()
	snap := s.coord.Store().Snapshot()
	diag := make(map[string]float32, len(snap))
	for k, r := range snap {
		if r.Valid {
			diag[string(k)] = r.Value
		}
	}
	payload := Snapshot{
		Mode:          s.coord.Mode().String(),
		StatusCounter: stats.StatusCounter,
		SpuriousCount: stats.SpuriousCount,
		Diagnostics:   diag,
		TsMs:          timex.NowMs(),
	}
	msg := conn.NewMessage(topicStatus, payload, true)
	conn.Publish(msg)
}

// Start runs the status publisher until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
