package config

import (
	"fmt"
	"time"

	"github.com/nergy-se/meterline/pkg/api/v1/types"
)

type CliConfig struct {
	Device      string `default:"/dev/ttyACM0"`
	BaudRate    int    `default:"19200"`
	ReadTimeout time.Duration

	MeterType   string `default:"shelly"`
	MeterURL    string `default:"http://192.168.178.52/meter/0"`
	HTTPTimeout time.Duration

	// MeterID is the mbus primary address or modbus slave id.
	MeterID string `default:"1"`

	MbusDevice string `default:"/dev/ttyAMA0"`
	MbusModel  string `default:"garo-GNM3D-MBUS"`

	ModbusAddress      string
	ModbusRegister     int     `default:"0"`
	ModbusRegisterType string  `default:"holding32"`
	ModbusScale        float64 `default:"1"`

	MQTTAddress string `default:":1883"`
	MQTTTopic   string `default:"p1ib/sensor_state"`

	LogLevel string `default:"info"`
}

func (c *CliConfig) Meter() types.MeterType {
	return types.MeterType(c.MeterType)
}

// Validate checks the fields the selected meter type depends on.
func (c *CliConfig) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("no serial device configured")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}

	switch c.Meter() {
	case types.MeterTypeShelly:
		if c.MeterURL == "" {
			return fmt.Errorf("meter type %s needs MeterURL", c.MeterType)
		}
	case types.MeterTypeMbus:
		if c.MbusDevice == "" {
			return fmt.Errorf("meter type %s needs MbusDevice", c.MeterType)
		}
	case types.MeterTypeModbus:
		if c.ModbusAddress == "" {
			return fmt.Errorf("meter type %s needs ModbusAddress", c.MeterType)
		}
		if c.ModbusRegister < 0 || c.ModbusRegister > 65535 {
			return fmt.Errorf("ModbusRegister %d out of range 0-65535", c.ModbusRegister)
		}
		if c.ModbusScale == 0 {
			return fmt.Errorf("ModbusScale cannot be 0")
		}
	case types.MeterTypeP1ib:
		if c.MQTTTopic == "" {
			return fmt.Errorf("meter type %s needs MQTTTopic", c.MeterType)
		}
	default:
		return fmt.Errorf("unknown meter type %q", c.MeterType)
	}
	return nil
}
