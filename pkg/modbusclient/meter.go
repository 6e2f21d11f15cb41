package modbusclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/sirupsen/logrus"
)

type RegisterType string

var RegisterTypeHolding16 = RegisterType("holding16")
var RegisterTypeHolding32 = RegisterType("holding32")
var RegisterTypeInput16 = RegisterType("input16")

// Meter reads active power from a single register of a modbus tcp meter.
type Meter struct {
	address      string
	slaveID      byte
	register     uint16
	registerType RegisterType
	scale        float64

	dial func() (Client, error)
}

func NewMeter(address, slaveID string, register uint16, registerType RegisterType, scale float64) (*Meter, error) {
	id, err := strconv.Atoi(slaveID)
	if err != nil || id < 0 || id > 247 {
		return nil, fmt.Errorf("invalid modbus slave id %q", slaveID)
	}
	switch registerType {
	case RegisterTypeHolding16, RegisterTypeHolding32, RegisterTypeInput16:
	default:
		return nil, fmt.Errorf("unknown modbus register type %q", registerType)
	}

	m := &Meter{
		address:      address,
		slaveID:      byte(id),
		register:     register,
		registerType: registerType,
		scale:        scale,
	}
	m.dial = m.dialTCP
	return m, nil
}

func (m *Meter) dialTCP() (Client, error) {
	handler := modbus.NewTCPClientHandler(m.address)
	handler.SlaveId = m.slaveID
	handler.Timeout = 5 * time.Second
	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("error connecting to modbus %s: %w", m.address, err)
	}
	return New(modbus.NewClient(handler), handler.Close), nil
}

func (m *Meter) Read(ctx context.Context) (*meter.Data, error) {
	c, err := m.dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var raw int
	switch m.registerType {
	case RegisterTypeHolding16:
		raw, err = c.ReadHoldingRegister16(m.register)
	case RegisterTypeHolding32:
		raw, err = c.ReadHoldingRegister32(m.register)
	case RegisterTypeInput16:
		raw, err = c.ReadInputRegister(m.register)
	}
	if err != nil {
		return nil, err
	}
	logrus.Debugf("modbus %s register %d (%s) raw value %d", m.address, m.register, m.registerType, raw)

	return &meter.Data{
		Id:        strconv.Itoa(int(m.slaveID)),
		Model:     "modbus",
		Time:      time.Now(),
		Current_W: float64(raw) / m.scale,
	}, nil
}
