package domain

import "time"

// AttemptStatus is the terminal outcome of one ingestion attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// IngestionAttempt is the audit record written once per processed creation
// event, whether or not the pipeline succeeded. Fields that were never
// resolved before a failure stay nil.
type IngestionAttempt struct {
	ID           int64         `json:"id"`
	Started      time.Time     `json:"started"`
	Ended        time.Time     `json:"ended"`
	Status       AttemptStatus `json:"status"`
	StatusMsg    *string       `json:"status_msg,omitempty"`
	EntityNames  []string      `json:"entity_names,omitempty"`
	FeatureTable *string       `json:"feature_table,omitempty"`
	Path         string        `json:"path"`
}
