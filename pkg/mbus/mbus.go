package mbus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonaz/gombus"
	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/sirupsen/logrus"
)

type Mbus struct {
	device string
	model  string
	id     string
}

func New(device, model, id string) *Mbus {
	return &Mbus{
		device: device,
		model:  model,
		id:     id,
	}
}

// Read dials the mbus device, reads one frame from the meter and closes the device.
func (m *Mbus) Read(ctx context.Context) (*meter.Data, error) {
	primaryAddr, err := strconv.Atoi(m.id)
	if err != nil {
		return nil, fmt.Errorf("invalid mbus primary address %q: %w", m.id, err)
	}
	// 251-255 are reserved
	if primaryAddr < 0 || primaryAddr > 250 {
		return nil, fmt.Errorf("mbus primary address %d out of range 0-250", primaryAddr)
	}

	conn, err := gombus.DialSerial(m.device)
	if err != nil {
		return nil, fmt.Errorf("error opening mbus device %s: %w", m.device, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	frame, err := read(conn, primaryAddr)
	if err != nil {
		return nil, fmt.Errorf("error reading mbus address %d: %w", primaryAddr, err)
	}

	values := make([]float64, len(frame.DataRecords))
	for i, record := range frame.DataRecords {
		values[i] = record.Value
	}
	logrus.Debugf("mbus frame from %d: %v", primaryAddr, values)
	return dataFromRecords(m.model, m.id, values)
}

func read(conn gombus.Conn, primaryAddr int) (*gombus.DecodedFrame, error) {
	_, err := conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(conn, primaryAddr)
}

// dataFromRecords maps the data record values of a known meter model.
func dataFromRecords(model, id string, values []float64) (*meter.Data, error) {
	data := &meter.Data{
		Id:    id,
		Model: model,
		Time:  time.Now(),
	}
	switch model {
	case "garo-GNM3D-MBUS":
		if len(values) < 3 {
			return nil, fmt.Errorf("%s: expected at least 3 data records got %d", model, len(values))
		}
		data.Total_WH = values[0]
		data.Current_W = values[2]
	default:
		return nil, fmt.Errorf("unsupported mbus model %q", model)
	}

	return data, nil
}
