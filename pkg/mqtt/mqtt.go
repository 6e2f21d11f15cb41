package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/sirupsen/logrus"
)

// Meter runs an embedded broker that the p1ib dongle publishes to and
// takes the first message on topic as the reading.
type Meter struct {
	address string
	topic   string

	server   *mqttv2.Server
	logOut   io.WriteCloser
	payloads chan []byte
}

func New(address, topic string) *Meter {
	return &Meter{
		address:  address,
		topic:    topic,
		payloads: make(chan []byte, 1),
	}
}

func (m *Meter) Start() error {
	if m.server != nil {
		return nil
	}
	m.logOut = logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(m.logOut, nil)),
	})
	m.server = server

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "p1ib", Address: m.address})
	err := server.AddListener(tcp)
	if err != nil {
		m.Close()
		return fmt.Errorf("error listening on %s: %w", m.address, err)
	}

	err = server.Subscribe(m.topic, 1, func(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
		logrus.Debugf("received message from %s on %s: %s", cl.ID, pk.TopicName, pk.Payload)
		select {
		case m.payloads <- append([]byte(nil), pk.Payload...):
		default:
		}
	})
	if err != nil {
		m.Close()
		return err
	}

	err = server.Serve()
	if err != nil {
		m.Close()
		return err
	}
	return nil
}

func (m *Meter) Close() error {
	if m.server == nil {
		return nil
	}
	err := m.server.Close()
	m.server = nil
	if m.logOut != nil {
		m.logOut.Close()
	}
	return err
}

// Read waits for the first message on the topic. It blocks until one arrives or ctx is done.
func (m *Meter) Read(ctx context.Context) (*meter.Data, error) {
	err := m.Start()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	logrus.Debugf("waiting for p1ib message on %s", m.topic)
	select {
	case payload := <-m.payloads:
		p := P1ib{}
		err = json.Unmarshal(payload, &p)
		if err != nil {
			return nil, fmt.Errorf("error decoding p1ib message: %w", err)
		}
		return p.AsMeterData("")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
