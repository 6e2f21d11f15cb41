package serialreader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
)

var ErrInvalidUTF8 = errors.New("serial line is not valid utf-8")
var ErrNoLine = errors.New("no line received")

// pollInterval bounds every single read on the port so ctx is checked even when the device is silent.
const pollInterval = 100 * time.Millisecond

type Port struct {
	config  *serial.Config
	timeout time.Duration
	open    func(*serial.Config) (io.ReadWriteCloser, error)
}

// New returns a Port for an 8N1 device. A zero timeout waits for a line until ctx is cancelled.
func New(address string, baudRate int, timeout time.Duration) *Port {
	return &Port{
		config: &serial.Config{
			Address:  address,
			BaudRate: baudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  pollInterval,
		},
		timeout: timeout,
		open: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return serial.Open(c)
		},
	}
}

// ReadLine opens the port, reads one line including its terminator and closes the port again.
func (p *Port) ReadLine(ctx context.Context) (string, error) {
	logrus.Debugf("opening serial port %s baud %d timeout %s", p.config.Address, p.config.BaudRate, p.timeout)
	conn, err := p.open(p.config)
	if err != nil {
		return "", fmt.Errorf("error opening serial port %s: %w", p.config.Address, err)
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			logrus.Errorf("error closing serial port %s: %s", p.config.Address, err)
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	b, err := readLine(ctx, conn)
	if err != nil {
		return "", fmt.Errorf("error reading from serial port %s: %w", p.config.Address, err)
	}
	logrus.Debugf("serial raw response: %q (length: %d)", b, len(b))

	return decode(b)
}

// readLine reads until '\n' or EOF. Poll timeouts from the port are retried until ctx is done;
// a line cut short by the deadline is returned as is.
func readLine(ctx context.Context, r io.Reader) ([]byte, error) {
	var line []byte
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			line = append(line, buf[:n]...)
			if i := bytes.IndexByte(line, '\n'); i >= 0 {
				return line[:i+1], nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, serial.ErrTimeout):
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		case len(line) == 0:
			return nil, fmt.Errorf("%w: %w", ErrNoLine, err)
		default:
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if len(line) > 0 {
				return line, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrNoLine, serial.ErrTimeout)
		}
	}
}

func decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUTF8, b)
	}
	return string(b), nil
}
