package domain

// RowBatch is one fragment of extracted rows. Columns follows the
// projection order from DatasetDescriptor.Columns: entity columns first,
// then the created and event timestamp columns. Every row in Rows is
// positionally aligned with Columns; timestamp values are time.Time,
// entity values carry the Go type matching their EntityType.
type RowBatch struct {
	FeatureTable string
	Path         string
	Columns      []string
	Rows         [][]any
}

// Len returns the number of rows in the batch.
func (b RowBatch) Len() int {
	return len(b.Rows)
}
