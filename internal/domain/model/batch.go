package model

import "time"

// Batch is a unit of atomic ingestion: all of its records persist together
// or not at all.
type Batch struct {
	ID         string
	Source     string
	Records    []RawRecord
	ReceivedAt time.Time
}

// BatchReport summarizes the outcome of one ingested batch.
type BatchReport struct {
	BatchID     string        `json:"batch_id"`
	Received    int           `json:"received"`
	Accepted    int           `json:"accepted"`
	Rejected    int           `json:"rejected"`
	Duplicates  int           `json:"duplicates"`
	Created     int           `json:"created"`
	Merged      int           `json:"merged"`
	Quarantined int           `json:"quarantined"`
	Conflicts   int           `json:"conflicts"`
	OutOfOrder  int           `json:"out_of_order"`
	ShipsScored int           `json:"ships_scored"`
	Duration    time.Duration `json:"duration_ns"`
}
