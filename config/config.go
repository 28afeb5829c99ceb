// Package config publishes the gateway's embedded per-key JSON
// configuration as retained bus messages, the same shape every other
// service on the bus subscribes to reconfigure itself.
package config

import (
	"context"
	"errors"

	"otgw-go/bus"

	"github.com/andreyvit/tinyjson"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	// CtxDeviceKey is the context key carrying the device/profile ID used
	// to select an embedded config document.
	CtxDeviceKey = "device"
)

// EmbeddedConfigLookup allows overriding how configs are resolved, mainly
// for tests.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Service struct{ Name string }

func NewService() *Service { return &Service{Name: serviceName} }

func (s *Service) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return errors.New("embedded config is not a JSON object")
	}

	for k, v := range m {
		msg := &bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		}
		conn.Publish(msg)
	}

	return nil
}

// Start launches the config publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		_ = s.publishConfig(ctx, conn)
	}()
}
