package studio

import (
	"context"
	"strings"

	"github.com/Protocol-Lattice/backdrop/src/models"
)

// Refine edits the displayed image following an instruction. It follows the Generate gate
// contract with a batch of one; on success the result replaces the displayed image.
func (w *Workspace) Refine(ctx context.Context, in RefineInput) (BatchOutcome, error) {
	tab := w.Tab()
	log := w.studio.logger(ctx, tab.ID, string(OpRefine))

	w.setPhase(PhaseValidating)
	base, ok := w.Displayed()
	if !ok {
		return w.reject(log, newError(KindValidation, ErrNoImage))
	}
	instruction := strings.TrimSpace(in.Instruction)
	if instruction == "" {
		return w.reject(log, newError(KindValidation, ErrMissingInstruction))
	}

	req := models.RefineRequest{Base: base.Image, Instruction: instruction, References: in.References}
	batch := batchSpec{tab: tab, op: OpRefine, label: "Refinement", parentID: base.ID}
	return w.submit(ctx, log, batch, 1, func(ctx context.Context, svc models.ImageService, _ int) attempt {
		img, err := svc.RefineImage(ctx, req)
		return attempt{image: img, prompt: instruction, err: err}
	})
}

// Reframe extends or crops the displayed image to TargetHeight pixels.
func (w *Workspace) Reframe(ctx context.Context, in ReframeInput) (BatchOutcome, error) {
	tab := w.Tab()
	log := w.studio.logger(ctx, tab.ID, string(OpReframe))

	w.setPhase(PhaseValidating)
	base, ok := w.Displayed()
	if !ok {
		return w.reject(log, newError(KindValidation, ErrNoImage))
	}
	if in.TargetHeight <= 0 {
		return w.reject(log, newError(KindValidation, ErrInvalidHeight))
	}
	if err := checkMaxHeight(in.TargetHeight); err != nil {
		return w.reject(log, err)
	}

	layout := strings.TrimSpace(in.Layout)
	req := models.ReframeRequest{Base: base.Image, TargetHeight: in.TargetHeight, Layout: layout}
	batch := batchSpec{tab: tab, op: OpReframe, label: "Reframe", parentID: base.ID}
	return w.submit(ctx, log, batch, 1, func(ctx context.Context, svc models.ImageService, _ int) attempt {
		img, err := svc.ReframeImage(ctx, req)
		prompt := layout
		if prompt == "" {
			prompt = base.Prompt
		}
		return attempt{image: img, prompt: prompt, err: err}
	})
}
