package types

import "time"

// Status is the lifecycle state of a ContentPiece
type Status string

const (
	StatusGenerated Status = "generated"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

// Source tells where a piece of content came from
type Source string

const (
	SourceGenerated Source = "generated" // language model output
	SourceFallback  Source = "fallback"  // deterministic template
)

// ContentType is the flavour of teaching a script is written as
type ContentType string

const (
	ContentProphecy         ContentType = "prophecy"
	ContentMeditation       ContentType = "meditation"
	ContentEnergyReading    ContentType = "energy_reading"
	ContentSpiritualInsight ContentType = "spiritual_insight"
)

// ContentTypes lists every supported ContentType in rotation order
var ContentTypes = []ContentType{
	ContentProphecy,
	ContentMeditation,
	ContentEnergyReading,
	ContentSpiritualInsight,
}

// ContentPiece is one unit of generated material considered for publishing
type ContentPiece struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Hook              string      `json:"hook,omitempty"`
	Script            string      `json:"script"`
	CallToAction      string      `json:"call_to_action,omitempty"`
	Hashtags          []string    `json:"hashtags,omitempty"`
	VisualPrompt      string      `json:"visual_prompt"`
	Theme             string      `json:"theme"`
	ContentType       ContentType `json:"content_type"`
	Source            Source      `json:"source"`
	AuthenticityScore float64     `json:"authenticity_score"`
	Attempt           int         `json:"attempt"`
	CreatedAt         time.Time   `json:"created_at"`
	Status            Status      `json:"status"`
	VideoPath         string      `json:"video_path,omitempty"`
	ExternalID        string      `json:"external_id,omitempty"`
}

// CaptionCue is one timed subtitle line
type CaptionCue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// CycleStats are the process-wide run counters owned by the engine
type CycleStats struct {
	TotalCycles        int       `json:"total_cycles"`
	TotalPublished     int       `json:"total_published"`
	TotalFailed        int       `json:"total_failed"`
	TotalRegenerations int       `json:"total_regenerations"`
	TotalFallbacks     int       `json:"total_fallbacks"`
	LastCycleAt        time.Time `json:"last_cycle_at"`
	LastError          string    `json:"last_error,omitempty"`
	LastStage          Stage     `json:"last_stage,omitempty"`
	LastVideoID        string    `json:"last_video_id,omitempty"`
}

// VideoMetadata holds everything the publisher needs besides the file itself
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}
