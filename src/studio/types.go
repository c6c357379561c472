package studio

import (
	"fmt"
	"strings"
	"time"

	"github.com/Protocol-Lattice/backdrop/src/models"
)

// Mode selects the kind of background a tab produces.
type Mode string

const (
	ModeProduct   Mode = "product"
	ModePortrait  Mode = "portrait"
	ModeLifestyle Mode = "lifestyle"
)

// ParseMode normalizes s; an empty string selects ModeProduct.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeProduct, nil
	case ModeProduct, ModePortrait, ModeLifestyle:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Position places the subject inside the generated frame.
type Position string

const (
	PositionCenter Position = "center"
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
)

// ParsePosition normalizes s; an empty string selects PositionCenter.
func ParsePosition(s string) (Position, error) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PositionCenter, nil
	case PositionCenter, PositionLeft, PositionRight, PositionTop, PositionBottom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown position %q", s)
	}
}

// Operation names what produced a history item.
type Operation string

const (
	OpGenerate Operation = "generate"
	OpRefine   Operation = "refine"
	OpReframe  Operation = "reframe"
	OpImport   Operation = "import"
)

// ProjectTab is one open project.
type ProjectTab struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryItem is one successful result. Items are never mutated after creation.
type HistoryItem struct {
	ID        string       `json:"id"`
	TabID     string       `json:"tab_id"`
	Kind      Operation    `json:"kind"`
	Mode      Mode         `json:"mode"`
	Prompt    string       `json:"prompt"`
	Image     models.Image `json:"image"`
	ParentID  string       `json:"parent_id,omitempty"`
	Variant   int          `json:"variant,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReferenceItem is a user-supplied style reference.
type ReferenceItem struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Image       models.Image `json:"image"`
	Description string       `json:"description"`
}

// Attributes are request toggles.
type Attributes struct {
	Gradient bool `json:"gradient"`
	Blur     bool `json:"blur"`
}

// GenerateInput is one batch submission.
type GenerateInput struct {
	BatchSize    int
	Prompt       string
	Subjects     []models.Image
	Assets       []models.Image
	Position     Position
	Attributes   Attributes
	TargetHeight int
}

// RefineInput edits the displayed image.
type RefineInput struct {
	Instruction string
	References  []models.Image
}

// ReframeInput extends or crops the displayed image to a new height.
type ReframeInput struct {
	TargetHeight int
	Layout       string
}

// Phase tracks a single generation attempt.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseValidating      Phase = "validating"
	PhaseRejected        Phase = "rejected"
	PhaseSubmitting      Phase = "submitting"
	PhaseAwaitingResults Phase = "awaiting_results"
	PhaseAllFailed       Phase = "all_failed"
	PhasePartialSuccess  Phase = "partial_success"
	PhaseAllSucceeded    Phase = "all_succeeded"
)

// BatchOutcome reports how a submission settled. Phase is the terminal phase reached.
type BatchOutcome struct {
	Phase     Phase         `json:"phase"`
	Displayed *HistoryItem  `json:"displayed,omitempty"`
	Items     []HistoryItem `json:"items,omitempty"`
	Failed    int           `json:"failed"`
	Message   string        `json:"message,omitempty"`
	Err       error         `json:"-"`
}
