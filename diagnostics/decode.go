// Package diagnostics decodes the boiler's diagnostic READ_DATA responses
// into named sensor readings and keeps the latest value of each.
package diagnostics

import "otgw-go/frame"

// Key names a fixed diagnostic sensor slot. The set is closed: Store
// creates one row per Key at construction and never adds or evicts rows.
type Key string

const (
	KeyBoilerTemp        Key = "t_boiler"
	KeyReturnTemp        Key = "t_return"
	KeyDHWTemp           Key = "t_dhw"
	KeyOutsideTemp       Key = "t_outside"
	KeyExhaustTemp       Key = "t_exhaust"
	KeyHeatExchangerTemp Key = "t_heat_exchanger"
	KeySetpointTemp      Key = "t_setpoint"
	KeyModulationLevel   Key = "modulation_level"
	KeyPressure          Key = "pressure"
	KeyFlowRate          Key = "flow_rate"
	KeyFaultCode         Key = "fault_code"
	KeyDiagCode          Key = "diag_code"
	KeyMaxCapacity       Key = "max_capacity"
	KeyMinModLevel       Key = "min_mod_level"
	KeyFanSetpoint       Key = "fan_setpoint"
	KeyFanCurrent        Key = "fan_current"
	KeyFanExhaustRPM     Key = "fan_exhaust_rpm"
	KeyFanSupplyRPM      Key = "fan_supply_rpm"
	KeyCO2Exhaust        Key = "co2_exhaust"
	KeyBurnerStarts      Key = "burner_starts"
	KeyCHPumpStarts      Key = "ch_pump_starts"
	KeyDHWPumpStarts     Key = "dhw_pump_starts"
	KeyDHWBurnerStarts   Key = "dhw_burner_starts"
	KeyBurnerHours       Key = "burner_hours"
	KeyDHWBurnerHours    Key = "dhw_burner_hours"
	KeyCHPumpHours       Key = "ch_pump_hours"
	KeyDHWPumpHours      Key = "dhw_pump_hours"
)

// AllKeys lists every diagnostic slot a fresh Store creates.
var AllKeys = []Key{
	KeyBoilerTemp, KeyReturnTemp, KeyDHWTemp, KeyOutsideTemp, KeyExhaustTemp,
	KeyHeatExchangerTemp, KeySetpointTemp, KeyModulationLevel, KeyPressure,
	KeyFlowRate, KeyFaultCode, KeyDiagCode, KeyMaxCapacity, KeyMinModLevel,
	KeyFanSetpoint, KeyFanCurrent, KeyFanExhaustRPM, KeyFanSupplyRPM,
	KeyCO2Exhaust, KeyBurnerStarts, KeyCHPumpStarts, KeyDHWPumpStarts,
	KeyDHWBurnerStarts, KeyBurnerHours, KeyDHWBurnerHours, KeyCHPumpHours,
	KeyDHWPumpHours,
}

// Rotation is the cyclic DID order the coordinator steps through in Proxy
// and Control mode, one entry every intercept_rate-th status (DID 0)
// request.
var Rotation = []uint8{
	25, 28, 26, 1, 17, 18, 27, 33, 34, 19, 5, 115, 15, 35, 32, 31, 29, 30, 79,
	84, 85, 116, 119, 117, 118, 120, 123, 121, 122,
}

// decoded is one field update produced from a single DID's response.
type decoded struct {
	key   Key
	value float32
	valid bool
}

// Decode extracts zero or more field updates from a READ_ACK for did with
// payload dv. An empty result means the DID is not one this gateway tracks.
func Decode(did uint8, dv uint16) []decoded {
	f := frame.Frame(uint32(dv)) // reuse the payload accessors on a bare DV
	switch did {
	case 25:
		v := f.AsF8_8()
		return []decoded{{KeyBoilerTemp, v, v > 0}}
	case 28:
		return []decoded{{KeyReturnTemp, f.AsF8_8(), true}}
	case 26:
		v := f.AsF8_8()
		return []decoded{{KeyDHWTemp, v, v > 0}}
	case 27:
		return []decoded{{KeyOutsideTemp, f.AsF8_8(), true}}
	case 33:
		v := float32(f.AsS16())
		return []decoded{{KeyExhaustTemp, v, v > -40 && v < 500}}
	case 34:
		v := float32(f.AsS16())
		return []decoded{{KeyHeatExchangerTemp, v, v > 0}}
	case 1:
		v := f.AsF8_8()
		return []decoded{{KeySetpointTemp, v, v > 0 && v < 100}}
	case 17:
		v := f.AsF8_8()
		return []decoded{{KeyModulationLevel, v, v >= 0 && v <= 100}}
	case 18:
		v := f.AsF8_8()
		return []decoded{{KeyPressure, v, v >= 0}}
	case 19:
		v := f.AsF8_8()
		return []decoded{{KeyFlowRate, v, v >= 0}}
	case 5:
		return []decoded{{KeyFaultCode, float32(f.LowByte()), true}}
	case 115:
		return []decoded{{KeyDiagCode, float32(f.AsU16()), true}}
	case 15:
		return []decoded{
			{KeyMaxCapacity, float32(f.HighByte()), true},
			{KeyMinModLevel, float32(f.LowByte()), true},
		}
	case 35:
		return []decoded{
			{KeyFanSetpoint, float32(f.HighByte()), true},
			{KeyFanCurrent, float32(f.LowByte()), true},
		}
	case 84:
		return []decoded{{KeyFanExhaustRPM, float32(f.AsU16()), true}}
	case 85:
		return []decoded{{KeyFanSupplyRPM, float32(f.AsU16()), true}}
	case 79:
		return []decoded{{KeyCO2Exhaust, float32(f.AsU16()), true}}
	case 116:
		return []decoded{{KeyBurnerStarts, float32(f.AsU16()), true}}
	case 119:
		return []decoded{{KeyCHPumpStarts, float32(f.AsU16()), true}}
	case 117:
		return []decoded{{KeyDHWPumpStarts, float32(f.AsU16()), true}}
	case 118:
		return []decoded{{KeyDHWBurnerStarts, float32(f.AsU16()), true}}
	case 120:
		return []decoded{{KeyBurnerHours, float32(f.AsU16()), true}}
	case 123:
		return []decoded{{KeyDHWBurnerHours, float32(f.AsU16()), true}}
	case 121:
		return []decoded{{KeyCHPumpHours, float32(f.AsU16()), true}}
	case 122:
		return []decoded{{KeyDHWPumpHours, float32(f.AsU16()), true}}
	default:
		return nil
	}
}
