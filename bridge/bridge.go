// Package bridge supervises the link to an external controller (normally
// an MQTT-connected home-automation setpoint bridge) and exposes its latest
// demand as a coordinator.ControlSource. The link itself is a pluggable
// Transport so host tests and hardware builds can each inject their own
// dialer without this package knowing about sockets or UARTs.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"otgw-go/bus"
	"otgw-go/coordinator"
	"otgw-go/x/timex"
)

// Config is the JSON-encoded configuration expected on "config/bridge".
type Config struct {
	Transport    TransportConfig `json:"transport"`
	StaleAfterMS int             `json:"stale_after_ms,omitempty"` // 0 uses DefaultStaleAfter
}

type TransportConfig struct {
	Type string      `json:"type"`
	UART *UARTConfig `json:"uart,omitempty"`
}

// UARTConfig carries enough information for an injected dialer to open a
// serial link to a local gateway process (e.g. an MQTT-to-serial bridge
// running on the same host).
type UARTConfig struct {
	Baud           int `json:"baud"`
	RxPin          int `json:"rx_pin"`
	TxPin          int `json:"tx_pin"`
	ReadTimeoutMS  int `json:"read_timeout_ms,omitempty"`
	WriteTimeoutMS int `json:"write_timeout_ms,omitempty"`
}

// DefaultStaleAfter is how long a control update remains Available once
// received, absent a newer one.
const DefaultStaleAfter = 30 * time.Second

// controlMessage is the wire format for one demand update.
type controlMessage struct {
	TsetC float32 `json:"tset_c"`
	CHOn  bool    `json:"ch_on"`
}

// Service supervises the transport and keeps the latest demand state. It
// implements coordinator.ControlSource.
type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores Config

	stateMu     sync.RWMutex
	lastTsetC   float32
	lastCHOn    bool
	lastUpdated time.Time
	staleAfter  time.Duration
}

// Start starts the bridge service and returns it so the caller can pass it
// to coordinator.New as a ControlSource. It returns at once; the service
// runs in its own goroutine until ctx is cancelled.
func Start(ctx context.Context, conn *bus.Connection) *Service {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
		staleAfter: DefaultStaleAfter,
	}
	go s.run(ctx)
	return s
}

// Get implements coordinator.ControlSource.
func (s *Service) Get() coordinator.ExternalControl {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.lastUpdated.IsZero() {
		return coordinator.ExternalControl{}
	}
	fresh := time.Since(s.lastUpdated) < s.staleAfter
	return coordinator.ExternalControl{
		Available:    fresh,
		TsetC:        s.lastTsetC,
		CHOn:         s.lastCHOn,
		LastUpdateMs: s.lastUpdated.UnixMilli(),
	}
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	if cfg.StaleAfterMS > 0 {
		s.stateMu.Lock()
		s.staleAfter = time.Duration(cfg.StaleAfterMS) * time.Millisecond
		s.stateMu.Unlock()
	}

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		if err := s.handleLink(ctx, rwc); err != nil {
			_ = rwc.Close()
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		return
	}
}

// handleLink reads newline-delimited JSON control updates off rwc until it
// errors or ctx is cancelled.
func (s *Service) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	dec := json.NewDecoder(rwc)
	errCh := make(chan error, 1)
	msgCh := make(chan controlMessage, 4)
	go func() {
		defer close(errCh)
		for {
			var m controlMessage
			if err := dec.Decode(&m); err != nil {
				errCh <- err
				return
			}
			msgCh <- m
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case m := <-msgCh:
			s.stateMu.Lock()
			s.lastTsetC = m.TsetC
			s.lastCHOn = m.CHOn
			s.lastUpdated = time.Now()
			s.stateMu.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("UARTDial not implemented")
)

// RegisterTransport lets platform code add transports (e.g. "tcp", "ws").
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		return newUARTTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// UARTDial is injected by platform code (e.g. main, or an rp2-tagged file).
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct{ cfg TransportConfig }

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("uart transport requires uart config")
	}
	return &uartTransport{cfg: cfg}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, *u.cfg.UART)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case []byte:
		return cfg, json.Unmarshal(v, &cfg)
	case string:
		return cfg, json.Unmarshal([]byte(v), &cfg)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		return cfg, json.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	msg := s.conn.NewMessage(s.stateTopic, payload, true)
	s.conn.Publish(msg)
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
