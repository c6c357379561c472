package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/backdrop/src/models"
)

// Generate submits one batch of BatchSize background variations. The whole batch holds a
// single slot of the global gate until every request has settled.
//
// A Rejected or AllFailed outcome is also returned as an error. A partial success returns
// a nil error; the outcome carries the message for the failed variations.
func (w *Workspace) Generate(ctx context.Context, in GenerateInput) (BatchOutcome, error) {
	tab := w.Tab()
	log := w.studio.logger(ctx, tab.ID, string(OpGenerate))

	w.setPhase(PhaseValidating)
	position, err := w.validateGenerate(in)
	if err != nil {
		return w.reject(log, err)
	}

	req := models.BackgroundRequest{
		Mode:         string(tab.Mode),
		Subjects:     in.Subjects,
		References:   referenceInputs(w.References()),
		Assets:       in.Assets,
		Position:     string(position),
		Gradient:     in.Attributes.Gradient,
		Blur:         in.Attributes.Blur,
		TargetHeight: in.TargetHeight,
	}
	batch := batchSpec{tab: tab, op: OpGenerate, label: "Generation"}
	return w.submit(ctx, log, batch, in.BatchSize, func(ctx context.Context, svc models.ImageService, i int) attempt {
		variant := req
		variant.Prompt = VariantPrompt(in.Prompt, i, in.BatchSize)
		res, err := svc.GenerateBackground(ctx, variant)
		if err != nil {
			return attempt{err: err}
		}
		prompt := res.Prompt
		if prompt == "" {
			prompt = variant.Prompt
		}
		return attempt{image: res.Image, prompt: prompt}
	})
}

func (w *Workspace) validateGenerate(in GenerateInput) (Position, *Error) {
	if !hasImage(in.Subjects) {
		return "", newError(KindValidation, ErrMissingSubject)
	}
	maxBatch := w.studio.cfg.maxBatch
	if in.BatchSize < 1 || in.BatchSize > maxBatch {
		return "", &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("batch size must be between 1 and %d, got %d", maxBatch, in.BatchSize),
			Err:     ErrInvalidBatchSize,
		}
	}
	if in.TargetHeight < 0 {
		return "", newError(KindValidation, ErrInvalidHeight)
	}
	if err := checkMaxHeight(in.TargetHeight); err != nil {
		return "", err
	}
	position, err := ParsePosition(string(in.Position))
	if err != nil {
		return "", newError(KindValidation, err)
	}
	return position, nil
}

// VariantPrompt returns the prompt for variant i (0-based) of a batch of n. Batches of
// one keep the prompt as given.
func VariantPrompt(prompt string, i, n int) string {
	if n <= 1 {
		return prompt
	}
	return strings.TrimSpace(prompt + fmt.Sprintf(variationSuffixTemplate, i+1))
}

func checkMaxHeight(height int) *Error {
	if height <= maxTargetHeight {
		return nil
	}
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("target height must be at most %d, got %d", maxTargetHeight, height),
		Err:     ErrInvalidHeight,
	}
}

func hasImage(images []models.Image) bool {
	for _, img := range images {
		if !img.Empty() {
			return true
		}
	}
	return false
}

func referenceInputs(refs []ReferenceItem) []models.Reference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]models.Reference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, models.Reference{Image: ref.Image, Description: ref.Description})
	}
	return out
}
