package models

import (
	"context"
	"time"
)

type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

// StageOutcome records how one pipeline stage terminated. Error carries the
// failure reason so callers can distinguish "no similar items" from
// "matching was skipped".
type StageOutcome struct {
	Status StageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

func StageOutcomeOK() StageOutcome {
	return StageOutcome{Status: StageOK}
}

func StageOutcomeFailed(err error) StageOutcome {
	return StageOutcome{Status: StageFailed, Error: err.Error()}
}

func StageOutcomeSkipped(reason string) StageOutcome {
	return StageOutcome{Status: StageSkipped, Error: reason}
}

// SnapshotResult is the synchronous output of one pipeline run. The
// immediate response and the stored record are built from the same Snapshot
// so they never diverge.
type SnapshotResult struct {
	Snapshot       *Snapshot    `json:"snapshot"`
	TextExtraction StageOutcome `json:"text_extraction"`
	Embedding      StageOutcome `json:"embedding"`
	Matching       StageOutcome `json:"matching"`
}

// SnapshotPipeline drives one image through OCR, embedding, matching and
// commit. Invocations are synchronous and independent.
type SnapshotPipeline interface {
	ProcessImage(ctx context.Context, image []byte, capturedAt time.Time) (*SnapshotResult, error)
}
