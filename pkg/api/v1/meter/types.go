package meter

import (
	"context"
	"time"
)

// Reader takes a single reading from a meter.
type Reader interface {
	Read(ctx context.Context) (*Data, error)
}

type Data struct {
	Id        string    `json:"id"`
	Model     string    `json:"model"`
	Time      time.Time `json:"time"`
	Current_W float64   `json:"w"`
	Total_WH  float64   `json:"wh,omitempty"`
}
