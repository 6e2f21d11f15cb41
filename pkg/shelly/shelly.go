package shelly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nergy-se/meterline/pkg/api/v1/meter"
	"github.com/sirupsen/logrus"
)

var ErrNoPower = errors.New("meter response has no power field")

// Meter is the body of a Shelly Gen1 /meter/N response.
type Meter struct {
	Power     *float64  `json:"power"`
	Overpower float64   `json:"overpower"`
	IsValid   bool      `json:"is_valid"`
	Timestamp int64     `json:"timestamp"`
	Counters  []float64 `json:"counters"`
	Total     float64   `json:"total"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

// New returns a client for the meter endpoint at url. A zero timeout means no timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Fetch(ctx context.Context) (*Meter, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("error fetching meter %s StatusCode: %d", c.url, resp.StatusCode)
	}

	response := &Meter{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return nil, fmt.Errorf("error decoding meter response: %w", err)
	}
	if response.Power == nil {
		return nil, ErrNoPower
	}
	logrus.Debugf("shelly meter: power %f valid %t total %f", *response.Power, response.IsValid, response.Total)
	return response, nil
}

func (c *Client) Read(ctx context.Context) (*meter.Data, error) {
	m, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	data := &meter.Data{
		Id:        c.url,
		Model:     "shelly",
		Time:      time.Now(),
		Current_W: *m.Power,
	}
	if m.Timestamp > 0 {
		data.Time = time.Unix(m.Timestamp, 0)
	}
	// total is reported in watt-minutes
	data.Total_WH = m.Total / 60
	return data, nil
}
