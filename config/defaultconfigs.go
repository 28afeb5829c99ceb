package config

// Populate embeddedConfigs at build time or edit manually during
// development. Key: device/profile ID (same value placed in ctx under
// CtxDeviceKey). Val: raw JSON bytes for that profile.

const cfgDefault = `{
  "coordinator": {
    "mode": "proxy",
    "intercept_rate": 10
  },
  "ports": {
    "thermostat": {"invert_tx": false, "invert_rx": false},
    "boiler":     {"invert_tx": false, "invert_rx": false}
  },
  "bridge": {
    "transport": {"type": "uart", "uart": {"baud": 9600, "rx_pin": 4, "tx_pin": 5}},
    "stale_after_ms": 30000
  },
  "status": {
    "interval_ms": 2000
  }
}`

var embeddedConfigs = map[string][]byte{
	"default": []byte(cfgDefault),
}
