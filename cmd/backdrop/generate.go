package main

import (
	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/backdrop/src/studio"
)

func newGenerateCmd() *cobra.Command {
	var (
		subjects   []string
		references []string
		assets     []string
		count      int
		prompt     string
		mode       string
		position   string
		gradient   bool
		blur       bool
		height     int
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of background variations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subjectImages, err := readImages(subjects)
			if err != nil {
				return err
			}
			assetImages, err := readImages(assets)
			if err != nil {
				return err
			}

			st, err := buildStudio(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStudio(ctx, st)

			ws, err := st.OpenTab(ctx, "", studio.Mode(mode))
			if err != nil {
				return err
			}
			if len(references) > 0 {
				sources := make([]studio.ReferenceSource, 0, len(references))
				for _, path := range references {
					sources = append(sources, studio.FileSource(path))
				}
				if _, err := ws.AddReferences(ctx, sources); err != nil {
					return err
				}
			}

			outcome, err := ws.Generate(ctx, studio.GenerateInput{
				BatchSize:    count,
				Prompt:       prompt,
				Subjects:     subjectImages,
				Assets:       assetImages,
				Position:     studio.Position(position),
				Attributes:   studio.Attributes{Gradient: gradient, Blur: blur},
				TargetHeight: height,
			})
			return reportOutcome(cmd, outDir, outcome, err)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&subjects, "subject", nil, "subject photo (repeatable)")
	flags.StringSliceVar(&references, "reference", nil, "style reference image (repeatable)")
	flags.StringSliceVar(&assets, "asset", nil, "brand asset image (repeatable)")
	flags.IntVarP(&count, "count", "n", 1, "number of variations")
	flags.StringVarP(&prompt, "prompt", "p", "", "background brief")
	flags.StringVar(&mode, "mode", string(studio.ModeProduct), "product, portrait or lifestyle")
	flags.StringVar(&position, "position", string(studio.PositionCenter), "subject placement")
	flags.BoolVar(&gradient, "gradient", false, "use a gradient backdrop")
	flags.BoolVar(&blur, "blur", false, "blur the background")
	flags.IntVar(&height, "height", 0, "output height in pixels")
	flags.StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newRefineCmd() *cobra.Command {
	var (
		imagePath   string
		instruction string
		references  []string
		outDir      string
	)
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Edit an image following an instruction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, st, err := openWithImage(cmd, imagePath)
			if err != nil {
				return err
			}
			defer closeStudio(ctx, st)
			refs, err := readImages(references)
			if err != nil {
				return err
			}
			outcome, err := ws.Refine(ctx, studio.RefineInput{Instruction: instruction, References: refs})
			return reportOutcome(cmd, outDir, outcome, err)
		},
	}
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "image to edit")
	cmd.Flags().StringVar(&instruction, "instruction", "", "edit instruction")
	cmd.Flags().StringSliceVar(&references, "reference", nil, "guidance image (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newReframeCmd() *cobra.Command {
	var (
		imagePath string
		height    int
		layout    string
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "reframe",
		Short: "Extend or crop an image to a new height",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, st, err := openWithImage(cmd, imagePath)
			if err != nil {
				return err
			}
			defer closeStudio(ctx, st)
			outcome, err := ws.Reframe(ctx, studio.ReframeInput{TargetHeight: height, Layout: layout})
			return reportOutcome(cmd, outDir, outcome, err)
		},
	}
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "image to reframe")
	cmd.Flags().IntVar(&height, "height", 0, "target height in pixels")
	cmd.Flags().StringVar(&layout, "layout", "", "layout hint")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

// openWithImage builds a studio with one tab displaying the image at path.
func openWithImage(cmd *cobra.Command, path string) (*studio.Workspace, *studio.Studio, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	img, err := readImage(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := buildStudio(ctx, cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	ws, err := st.OpenTab(ctx, "", studio.ModeProduct)
	if err == nil {
		_, err = ws.Import(ctx, path, img)
	}
	if err != nil {
		closeStudio(ctx, st)
		return nil, nil, err
	}
	return ws, st, nil
}
