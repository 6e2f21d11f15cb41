package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nergy-se/meterline/pkg/api/v1/config"
	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/nergy-se/meterline/pkg/modbusclient"
	"github.com/nergy-se/meterline/pkg/mqtt"
	"github.com/nergy-se/meterline/pkg/serialreader"
	"github.com/nergy-se/meterline/pkg/shelly"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSerial struct {
	line  string
	err   error
	calls int
}

func (f *fakeSerial) ReadLine(ctx context.Context) (string, error) {
	f.calls++
	return f.line, f.err
}

type fakeMeter struct {
	watts float64
	err   error
	calls int
}

func (f *fakeMeter) Read(ctx context.Context) (*meter.Data, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &meter.Data{Model: "fake", Current_W: f.watts}, nil
}

func TestRunShellyEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meter/0", r.URL.Path)
		fmt.Fprint(w, `{"power": 734}`)
	}))
	defer srv.Close()

	out := &bytes.Buffer{}
	a := &App{
		serial: &fakeSerial{line: "23.5,60\n"},
		meter:  shelly.New(srv.URL+"/meter/0", 0),
		out:    out,
	}

	err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "23.5,60,70\n", out.String())
}

func TestRunMissingPowerPrintsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"overpower": 0}`)
	}))
	defer srv.Close()

	out := &bytes.Buffer{}
	a := &App{
		serial: &fakeSerial{line: "23.5,60\n"},
		meter:  shelly.New(srv.URL+"/meter/0", 0),
		out:    out,
	}

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, shelly.ErrNoPower)
	assert.Empty(t, out.String())
}

func TestRunSerialErrorSkipsMeter(t *testing.T) {
	serialErr := errors.New("open /dev/ttyACM0: no such file or directory")
	m := &fakeMeter{watts: 734}
	out := &bytes.Buffer{}
	a := &App{
		serial: &fakeSerial{err: serialErr},
		meter:  m,
		out:    out,
	}

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, serialErr)
	assert.Equal(t, 0, m.calls)
	assert.Empty(t, out.String())
}

func TestRun(t *testing.T) {
	var tests = []struct {
		name     string
		line     string
		watts    float64
		expected string
	}{
		{name: "crlf", line: "21.0,40\r\n", watts: 1499, expected: "21.0,40,150\n"},
		{name: "no terminator", line: "21.0,40", watts: 0, expected: "21.0,40,0\n"},
		{name: "export", line: "21.0,40\n", watts: -50, expected: "21.0,40,-10\n"},
		{name: "empty line", line: "\n", watts: 2500, expected: ",20\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			a := &App{
				serial: &fakeSerial{line: tt.line},
				meter:  &fakeMeter{watts: tt.watts},
				out:    out,
			}
			err := a.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "23.5,60,70", FormatLine("23.5,60\n", 70))
	assert.Equal(t, "23.5,60,70", FormatLine("23.5,60\r\n", 70))
	assert.Equal(t, "23.5,60\n\n,70", FormatLine("23.5,60\n\n\n", 70))
}

func TestNew(t *testing.T) {
	var tests = []struct {
		name     string
		config   *config.CliConfig
		expected meter.Reader
		err      string
	}{
		{
			name:     "shelly",
			config:   &config.CliConfig{Device: "/dev/ttyACM0", BaudRate: 19200, MeterType: "shelly", MeterURL: "http://192.168.178.52/meter/0"},
			expected: &shelly.Client{},
		},
		{
			name:     "modbus",
			config:   &config.CliConfig{Device: "/dev/ttyACM0", BaudRate: 19200, MeterType: "modbus", ModbusAddress: "127.0.0.1:502", MeterID: "1", ModbusRegisterType: "holding32", ModbusScale: 1},
			expected: &modbusclient.Meter{},
		},
		{
			name:     "p1ib",
			config:   &config.CliConfig{Device: "/dev/ttyACM0", BaudRate: 19200, MeterType: "p1ib", MQTTAddress: ":1883", MQTTTopic: "p1ib/sensor_state"},
			expected: &mqtt.Meter{},
		},
		{
			name:   "invalid",
			config: &config.CliConfig{Device: "/dev/ttyACM0", BaudRate: 19200, MeterType: "tibber"},
			err:    `unknown meter type "tibber"`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.config, io.Discard)
			if tt.err != "" {
				assert.EqualError(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &serialreader.Port{}, a.serial)
			assert.IsType(t, tt.expected, a.meter)
		})
	}
}
