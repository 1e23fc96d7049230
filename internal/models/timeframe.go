package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type TimeframeKey string

const (
	TimeframeCurrent  TimeframeKey = "current"
	TimeframeUpcoming TimeframeKey = "upcoming"
)

func (k TimeframeKey) Valid() bool {
	return k == TimeframeCurrent || k == TimeframeUpcoming
}

// TimeframeWindow is one browsable promotion period of the catalog.
type TimeframeWindow struct {
	Key       TimeframeKey `json:"key"`
	URL       string       `json:"url"`
	StartDate *Date        `json:"start_date"`
	EndDate   *Date        `json:"end_date"`
}

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}
