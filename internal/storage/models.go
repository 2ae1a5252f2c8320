package storage

import "time"

// Binding links an internal account (tax id + device id) to a LINE user.
type Binding struct {
	TaxID      string
	DeviceID   string
	LineUserID string
	BoundAt    time.Time
}
