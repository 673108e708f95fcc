package store

import "time"

// Event is a single recorded observation (spec.md §3).
type Event struct {
	ID                 int64
	Timestamp          time.Time
	EffectText         string
	Embedding          []float32
	CauseID            *int64
	CausalRelationship string
}

// IsRoot reports whether the event has no recorded cause.
func (e *Event) IsRoot() bool {
	return e.CauseID == nil
}
