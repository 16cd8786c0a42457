package calls

import "time"

// Record is a call or SMS event ingested from the telephony provider.
//
// Timestamps are stored in UTC. Duration 0 marks a non-voice event (SMS,
// missed-before-answer); voice aggregates exclude those by policy.
//
// Booked, Emergency and Stage are owned by operators and the CRM sync; the
// ingestion path never overwrites them.
type Record struct {
	ID           string    `json:"id" db:"id"`
	OccurredAt   time.Time `json:"occurredAt" db:"occurred_at"`
	CallerNumber string    `json:"callerNumber" db:"caller_number"`

	DurationSeconds int `json:"duration" db:"duration"`

	// Transcript is nil until a transcript event arrives.
	Transcript *string `json:"transcript,omitempty" db:"transcript"`

	Booked bool `json:"booked" db:"booked"`
	// Emergency is nil for legacy rows that were never flagged either way.
	Emergency *bool `json:"emergency,omitempty" db:"emergency"`

	Stage PipelineStage `json:"pipelineStage,omitempty" db:"pipeline_stage"`
}

// IsVoice reports whether the record was a connected voice call.
func (r Record) IsVoice() bool { return r.DurationSeconds > 0 }

type PipelineStage string

const (
	StageNone      PipelineStage = ""
	StageNewLead   PipelineStage = "new_lead"
	StageContacted PipelineStage = "contacted"
	StageQuoted    PipelineStage = "quoted"
	StageBooked    PipelineStage = "booked"
	StageCompleted PipelineStage = "completed"
	StageLost      PipelineStage = "lost"
)

func (s PipelineStage) Valid() bool {
	switch s {
	case StageNone, StageNewLead, StageContacted, StageQuoted, StageBooked, StageCompleted, StageLost:
		return true
	default:
		return false
	}
}
