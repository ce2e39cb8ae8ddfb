package models

import (
	"time"
)

// Assignment is the set of fields written together, atomically, when a
// dispatcher assigns a driver to a load or edits an existing assignment.
type Assignment struct {
	DriverID    string
	DriverName  string
	TruckNumber string
	PriceCents  int64
	ETA         *time.Time
}

// SignatureProof is the optional delivery proof captured at the deliver
// transition.
type SignatureProof struct {
	URL      string
	Captured time.Time
}
