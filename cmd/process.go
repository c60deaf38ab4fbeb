package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ocrtools/internal/batch"
	"ocrtools/internal/delivery"
	"ocrtools/internal/extract"
	"ocrtools/internal/logger"
	"ocrtools/internal/metrics"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run OCR over every category folder and write one .txt per image",
	Long: `Process every supported image (.jpg, .jpeg, .png, .bmp) found in the
category folders of the input root and write the recognized text to the
mirrored folder of the output root:

  <input_root>/<category>/<name>.<ext>  ->  <output_root>/<category>/<name>.txt

Images larger than max_image_mp megapixels are downsampled and every image is
converted to grayscale before recognition. A file that cannot be decoded,
recognized or written is reported and skipped. A missing category folder is a
warning. Only a missing input root stops the run.

With --extract, total, IVA and NIT are extracted from the written texts and
filtrado_resultados.json plus no_total/ are written to the output root.`,
	Example: `  # Process with settings from config.ini
  ocrtools process

  # Override folders and use four parallel workers
  ocrtools process --input ./Orden --output ./Orden/resultados --workers 4

  # Use Google Cloud Vision and extract fields in the same run
  ocrtools process --engine vision --extract

  # Machine-readable report
  ocrtools process --json > report.json`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("input", "", "Input root folder (default: input_root from config)")
	processCmd.Flags().String("output", "", "Output root folder (default: output_root from config)")
	processCmd.Flags().String("engine", "", "OCR engine: tesseract or vision (default: engine from config)")
	processCmd.Flags().Int("workers", 0, "Parallel workers per category (default: workers from config)")
	processCmd.Flags().Bool("extract", false, "Extract total, IVA and NIT from the written texts")
	processCmd.Flags().Bool("json", false, "Print the run report as JSON")
	processCmd.Flags().Bool("verbose", false, "List every file outcome")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	inputRoot, _ := cmd.Flags().GetString("input")
	outputRoot, _ := cmd.Flags().GetString("output")
	engineName, _ := cmd.Flags().GetString("engine")
	workers, _ := cmd.Flags().GetInt("workers")
	withExtraction, _ := cmd.Flags().GetBool("extract")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if inputRoot == "" {
		inputRoot = cfg.InputRoot
	}
	if outputRoot == "" {
		outputRoot = cfg.OutputRoot
	}
	if engineName == "" {
		engineName = cfg.Engine
	}
	opts := batch.OptionsFromConfig(cfg)
	if workers > 0 {
		opts.Workers = workers
	}

	ctx, cancel := createSignalContext(log)
	defer cancel()

	engine, closeEngine, err := createEngine(ctx, engineName, log)
	if err != nil {
		return err
	}
	defer closeEngine()

	if !jsonOutput {
		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("                         PROCESAMIENTO OCR POR LOTES")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Entrada: %s\n", inputRoot)
		fmt.Printf("Salida: %s\n", outputRoot)
		fmt.Printf("Categorías: %s\n", strings.Join(opts.Categories, ", "))
		fmt.Printf("Motor: %s (idioma %s, %d worker(s))\n", engine.Name(), opts.Language, opts.Workers)
		fmt.Println()
	}

	report, err := batch.NewProcessor(engine, opts).Run(ctx, inputRoot, outputRoot)
	if err != nil {
		if errors.Is(err, batch.ErrRootMissing) {
			return fmt.Errorf("input folder not found: %s", inputRoot)
		}
		return err
	}
	metrics.ObserveReport(report)

	var result *extract.Result
	if withExtraction {
		r, err := extractOutput(outputRoot)
		if err != nil {
			return err
		}
		result = &r
	}

	if jsonOutput {
		return printJSON(processOutput{Report: report, Counts: report.Counts(), Extraction: summaryOf(result)})
	}

	printReport(report, verbose)
	if result != nil {
		printExtraction(*result, outputRoot)
	}
	fmt.Println(strings.Repeat("=", 80))

	return nil
}

type processOutput struct {
	Report     *batch.Report    `json:"report"`
	Counts     batch.Counts     `json:"counts"`
	Extraction *extract.Summary `json:"extraction,omitempty"`
}

func summaryOf(result *extract.Result) *extract.Summary {
	if result == nil {
		return nil
	}
	return &result.Summary
}

// extractOutput runs extraction over the artifacts under outputRoot and
// writes the delivery next to them.
func extractOutput(outputRoot string) (extract.Result, error) {
	artifacts, err := extract.ReadArtifacts(outputRoot)
	if err != nil {
		return extract.Result{}, fmt.Errorf("failed to read text artifacts: %w", err)
	}
	result := extract.Default().Aggregate(artifacts)
	metrics.ObserveExtraction(result)
	if err := delivery.WriteDir(outputRoot, result); err != nil {
		return extract.Result{}, fmt.Errorf("failed to write extraction results: %w", err)
	}
	return result, nil
}

func printReport(report *batch.Report, verbose bool) {
	for _, cat := range report.Categories {
		counts := cat.Counts()
		fmt.Printf("[%s] %d imagen(es)\n", cat.Name, cat.Images)
		for _, w := range cat.Warnings {
			fmt.Printf("  ⚠️  %s: %s\n", w.Kind, w.Path)
		}
		for _, f := range cat.Files {
			if !verbose && f.Status != batch.StatusFailed {
				continue
			}
			fmt.Printf("  %s %s", statusEmoji(f.Status), filepath.Base(f.Source))
			if f.Status == batch.StatusFailed {
				fmt.Printf(" (%s: %s)", f.Kind, handleOCRError(f.Err()))
			} else {
				fmt.Printf(" (%d caracteres)", f.Chars)
			}
			fmt.Println()
		}
		if counts.Images > 0 {
			fmt.Printf("  procesadas: %d, vacías: %d, con error: %d\n", counts.Processed, counts.Empty, counts.Failed)
		}
	}

	counts := report.Counts()
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Imágenes: %d\n", counts.Images)
	fmt.Printf("Procesadas: %d\n", counts.Processed)
	if counts.Empty > 0 {
		fmt.Printf("Sin texto: %d\n", counts.Empty)
	}
	if counts.Failed > 0 {
		fmt.Printf("Con error: %d\n", counts.Failed)
	}
	if counts.Warnings > 0 {
		fmt.Printf("Advertencias: %d\n", counts.Warnings)
	}
	fmt.Printf("Duración: %s\n", report.Duration().Round(time.Millisecond))
	fmt.Println()
}

func printExtraction(result extract.Result, dir string) {
	fmt.Printf("Registros con total: %d\n", result.MatchedCount())
	fmt.Printf("Registros sin total: %d\n", result.Summary.UnmatchedCount)
	for _, name := range result.Summary.UnmatchedNames {
		fmt.Printf("  - %s\n", name)
	}
	if dir != "" {
		fmt.Printf("Resultados: %s\n", filepath.Join(dir, delivery.RecordsFile))
	}
}

func statusEmoji(status batch.Status) string {
	switch status {
	case batch.StatusProcessed:
		return "✅"
	case batch.StatusEmpty:
		return "⚠️"
	case batch.StatusFailed:
		return "❌"
	default:
		return "❓"
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// createSignalContext returns a context canceled on SIGINT or SIGTERM
func createSignalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
