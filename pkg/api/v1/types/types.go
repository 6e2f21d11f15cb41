package types

// MeterType selects where the power reading comes from.
type MeterType string

var MeterTypeShelly = MeterType("shelly")
var MeterTypeMbus = MeterType("mbus")
var MeterTypeModbus = MeterType("modbus")
var MeterTypeP1ib = MeterType("p1ib")
