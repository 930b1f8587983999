package domain

import "strings"

// Notification is one bucket event delivered by the object store webhook.
// Key is bucket-relative and includes the leading bucket segment, e.g.
// "feast/offline/driver_stats/part-1.parquet".
type Notification struct {
	EventName string `json:"EventName"`
	Key       string `json:"Key"`
}

// IsCreation reports whether the event announces a new object. Removal
// events are acknowledged but never mutate any table.
func (n Notification) IsCreation() bool {
	return strings.HasPrefix(n.EventName, "s3:ObjectCreated")
}
