package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nergy-se/meterline/pkg/api/v1/config"
	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/nergy-se/meterline/pkg/api/v1/types"
	"github.com/nergy-se/meterline/pkg/mbus"
	"github.com/nergy-se/meterline/pkg/modbusclient"
	"github.com/nergy-se/meterline/pkg/mqtt"
	"github.com/nergy-se/meterline/pkg/power"
	"github.com/nergy-se/meterline/pkg/serialreader"
	"github.com/nergy-se/meterline/pkg/shelly"
	"github.com/sirupsen/logrus"
)

type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

type App struct {
	serial LineReader
	meter  meter.Reader
	out    io.Writer
}

func New(config *config.CliConfig, out io.Writer) (*App, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}
	m, err := newMeter(config)
	if err != nil {
		return nil, err
	}
	return &App{
		serial: serialreader.New(config.Device, config.BaudRate, config.ReadTimeout),
		meter:  m,
		out:    out,
	}, nil
}

func newMeter(config *config.CliConfig) (meter.Reader, error) {
	switch config.Meter() {
	case types.MeterTypeShelly:
		return shelly.New(config.MeterURL, config.HTTPTimeout), nil
	case types.MeterTypeMbus:
		return mbus.New(config.MbusDevice, config.MbusModel, config.MeterID), nil
	case types.MeterTypeModbus:
		return modbusclient.NewMeter(
			config.ModbusAddress,
			config.MeterID,
			uint16(config.ModbusRegister),
			modbusclient.RegisterType(config.ModbusRegisterType),
			config.ModbusScale,
		)
	case types.MeterTypeP1ib:
		return mqtt.New(config.MQTTAddress, config.MQTTTopic), nil
	}
	return nil, fmt.Errorf("unknown meter type %q", config.MeterType)
}

// Run reads one serial line and one meter reading and writes them as a single line.
// Nothing is written if any step fails.
func (a *App) Run(ctx context.Context) error {
	line, err := a.serial.ReadLine(ctx)
	if err != nil {
		return err
	}

	data, err := a.meter.Read(ctx)
	if err != nil {
		return err
	}
	bucket := power.Bucket(data.Current_W)
	logrus.Debugf("meter %s %s: %f W bucket %d", data.Model, data.Id, data.Current_W, bucket)

	_, err = fmt.Fprintln(a.out, FormatLine(line, bucket))
	return err
}

// FormatLine joins the serial line without its terminator and the power bucket.
func FormatLine(line string, bucket int) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line + "," + strconv.Itoa(bucket)
}
