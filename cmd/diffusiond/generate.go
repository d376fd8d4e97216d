package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"diffusiond/internal/backend"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/results"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		req       orchestrator.Request
		scheduler string
		units     string
		format    string
		outDir    string
	)
	cmd := &cobra.Command{
		Use:     "generate [prompt]",
		Short:   "Run one batch locally and write the images to a directory",
		Example: "  diffusiond generate --worker-url http://127.0.0.1:7861 --count 2 --out ./out \"a lighthouse at dusk\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Prompt = args[0]
			req.Scheduler = backend.Scheduler(scheduler)
			if req.ComputeUnits, err = backend.ParseComputeUnits(units); err != nil {
				return err
			}
			if req.SaveFormat, err = results.ParseFormat(format); err != nil {
				return err
			}
			req.SaveDir = outDir

			cfg := a.cfg
			cfg.NoGallery = true
			svcs, err := buildServices(cmd.Context(), cfg, a.log)
			if err != nil {
				return err
			}
			defer svcs.Close()

			res, err := svcs.orch.Run(cmd.Context(), req)
			for _, img := range res.Images {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tseed=%d\t%dx%d\n", img.Path, img.Seed, img.Width, img.Height)
			}
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d images failed: %s", res.Failed, max(req.Count, 1), res.Message)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.NegativePrompt, "negative", "", "Negative prompt")
	f.StringVar(&req.Model, "model", "", "Model name or path (default first catalogued)")
	f.IntVar(&req.Count, "count", 1, "Number of images")
	f.IntVar(&req.Steps, "steps", 0, "Diffusion steps (default 25)")
	f.Uint32Var(&req.Seed, "seed", 0, "Starting seed (0 = random)")
	f.Float32Var(&req.GuidanceScale, "guidance", 0, "Guidance scale (default 7.5)")
	f.BoolVar(&req.Upscale, "upscale", false, "Upscale finished images")
	f.BoolVar(&req.SafetyChecker, "safety-checker", false, "Enable the safety checker")
	f.StringVar(&scheduler, "scheduler", "", "Scheduler name (default per backend)")
	f.StringVar(&units, "units", "", "Compute units for this batch (default from config)")
	f.StringVar(&format, "format", "png", "Output format: png|jpeg|bmp|tiff")
	f.StringVar(&outDir, "out", ".", "Output directory")
	return cmd
}
