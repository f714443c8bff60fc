package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/cwbudde/ssimgo/internal/config"
	"github.com/cwbudde/ssimgo/internal/imageio"
	"github.com/cwbudde/ssimgo/internal/metric"
	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/cwbudde/ssimgo/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// compareFlags holds the parameter flags of the compare command. The set*
// fields record which flags were given explicitly.
type compareFlags struct {
	preset    string
	exponents []float64
	constants []float64
	radius    float64

	setExponents bool
	setConstants bool
	setRadius    bool
}

var (
	candidatePath string
	referencePath string
	layoutName    string
	jsonOutput    bool
	saveReport    bool
	paramFlags    compareFlags
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a candidate image against a reference",
	Long: `Computes the SSIM index of the candidate against the reference together
with MSE and PSNR. Parameters come from an optional YAML preset; explicit flags
override preset values. With --save the report and its SSIM map are stored
under the data directory.`,
	RunE: runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&candidatePath, "candidate", "", "Candidate image path (required)")
	f.StringVar(&referencePath, "reference", "", "Reference image path (required)")
	f.StringVar(&layoutName, "layout", "rgb", "Channel layout: rgb or gray")
	f.StringVar(&paramFlags.preset, "preset", "", "YAML parameter preset")
	f.Float64SliceVar(&paramFlags.exponents, "exponents", nil, "Luminance, contrast and structure exponents (a,b,c)")
	f.Float64SliceVar(&paramFlags.constants, "constants", nil, "Regularization constants (C1,C2,C3)")
	f.Float64Var(&paramFlags.radius, "radius", ssim.DefaultRadius, "Gaussian standard deviation")
	f.BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	f.BoolVar(&saveReport, "save", false, "Store the report and SSIM map")

	compareCmd.MarkFlagRequired("candidate")
	compareCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(compareCmd)
}

// options merges the preset with the explicitly set flags.
func (f compareFlags) options() (ssim.Options, error) {
	var base ssim.Options
	if f.preset != "" {
		var err error
		if base, err = config.LoadPreset(f.preset); err != nil {
			return ssim.Options{}, err
		}
	}

	var override ssim.Options
	var err error
	if f.setExponents {
		if override.Exponents, err = config.Triple("exponents", f.exponents); err != nil {
			return ssim.Options{}, err
		}
	}
	if f.setConstants {
		if override.Constants, err = config.Triple("constants", f.constants); err != nil {
			return ssim.Options{}, err
		}
	}
	if f.setRadius {
		r := f.radius
		override.Radius = &r
	}

	opts := config.Merge(base, override)
	if err := opts.Validate(); err != nil {
		return ssim.Options{}, err
	}
	return opts, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	paramFlags.setExponents = flags.Changed("exponents")
	paramFlags.setConstants = flags.Changed("constants")
	paramFlags.setRadius = flags.Changed("radius")

	layout, err := imageio.ParseLayout(layoutName)
	if err != nil {
		return err
	}
	opts, err := paramFlags.options()
	if err != nil {
		return err
	}

	candidate, reference, err := imageio.LoadPair(candidatePath, referencePath, layout)
	if err != nil {
		return err
	}
	slog.Info("Loaded images", "candidate", candidatePath, "reference", referencePath, "shape", reference.Shape, "dtype", reference.DType.String())

	ev, err := metric.Evaluate(candidate, reference, opts)
	if err != nil {
		return err
	}

	report := store.NewReport(uuid.NewString(), ev.Result, reference, ev.MSE, ev.PSNR)
	report.CandidatePath = candidatePath
	report.ReferencePath = referencePath
	report.Layout = string(layout)

	if saveReport {
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		if err := reportStore.SaveReport(report, ev.Result.Map); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		slog.Info("Saved report", "id", report.ID, "data_dir", dataDir)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(out, report)
	if saveReport {
		fmt.Fprintf(out, "Saved report %s\n", report.ID)
	}
	return nil
}

// channelNames labels the entries of a report index.
func channelNames(r *store.Report) []string {
	names := make([]string, len(r.Index))
	if r.Layout == string(imageio.LayoutRGB) && len(names) == 3 {
		return []string{"R", "G", "B"}
	}
	for i := range names {
		names[i] = fmt.Sprintf("channel %d", i)
	}
	return names
}

// printReport writes the human-readable summary of r.
func printReport(w io.Writer, r *store.Report) {
	fmt.Fprintf(w, "SSIM: %.6f\n", r.Value)
	if len(r.Index) > 1 {
		for i, name := range channelNames(r) {
			fmt.Fprintf(w, "  %s: %.6f\n", name, r.Index[i])
		}
	}
	fmt.Fprintf(w, "MSE:  %.4f\n", r.MSE)
	if r.PSNR != nil {
		fmt.Fprintf(w, "PSNR: %.2f dB\n", *r.PSNR)
	} else {
		fmt.Fprintln(w, "PSNR: inf")
	}
	fmt.Fprintf(w, "Params: exponents=%v constants=%v radius=%g fast_path=%v\n",
		r.Params.Exponents, r.Params.Constants, r.Params.Radius, r.FastPath)
}
