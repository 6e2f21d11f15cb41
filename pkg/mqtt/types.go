package mqtt

import (
	"errors"
	"time"

	"github.com/nergy-se/meterline/pkg/api/v1/meter"
)

var ErrNoPower = errors.New("p1ib message has no active power")

/*
P1ib is the p1ib/sensor_state payload, example:

	{
	  "p1ib_hourly_active_import_q1_q4": 76215.335,
	  "p1ib_hourly_active_export_q2_q3": 12925.573,
	  "p1ib_active_power_plus_q1_q4": 4.396,
	  "p1ib_active_power_minus_q2_q3": 0,
	  "p1ib_voltage_l1": 233.6,
	  "p1ib_current_l1": 3.5,
	  "p1ib_firmware": "54aa555",
	  "p1ib_rssi": "-58",
	  "p1ib_meter": "Aidon",
	  ...
	}

Power is in kW and energy in kWh.
*/
type P1ib struct {
	HourlyActiveImportQ1Q4 float64  `json:"p1ib_hourly_active_import_q1_q4"`
	HourlyActiveExportQ2Q3 float64  `json:"p1ib_hourly_active_export_q2_q3"`
	ActivePowerPlusQ1Q4    *float64 `json:"p1ib_active_power_plus_q1_q4"`
	ActivePowerMinusQ2Q3   float64  `json:"p1ib_active_power_minus_q2_q3"`
	VoltageL1              float64  `json:"p1ib_voltage_l1"`
	VoltageL2              float64  `json:"p1ib_voltage_l2"`
	VoltageL3              float64  `json:"p1ib_voltage_l3"`
	CurrentL1              float64  `json:"p1ib_current_l1"`
	CurrentL2              float64  `json:"p1ib_current_l2"`
	CurrentL3              float64  `json:"p1ib_current_l3"`
	Firmware               string   `json:"p1ib_firmware"`
	Rssi                   string   `json:"p1ib_rssi"`
	Meter                  string   `json:"p1ib_meter"`
	WifiMac                string   `json:"p1ib_wifi_mac"`
}

// AsMeterData returns net active power in W, import minus export.
func (p P1ib) AsMeterData(id string) (*meter.Data, error) {
	if p.ActivePowerPlusQ1Q4 == nil {
		return nil, ErrNoPower
	}
	if id == "" {
		id = p.WifiMac
	}
	return &meter.Data{
		Id:        id,
		Model:     "p1ib",
		Time:      time.Now(),
		Current_W: (*p.ActivePowerPlusQ1Q4 - p.ActivePowerMinusQ2Q3) * 1000,
		Total_WH:  p.HourlyActiveImportQ1Q4 * 1000,
	}, nil
}
