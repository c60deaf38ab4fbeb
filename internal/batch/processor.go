// Package batch runs OCR over a folder tree of scanned documents.
//
// The input root holds one subfolder per category (for example "Gastos" and
// "Ganancias"). Every supported image in a category folder is decoded,
// downsampled and converted to grayscale, recognized, and written as a .txt
// artifact with the same base name under the mirrored category folder of the
// output root.
//
// Failures are isolated per file: a corrupt image, an OCR error or a write
// error is recorded in the Report and processing continues with the next
// file. A missing category is a warning. Only a missing input root aborts
// the run (ErrRootMissing).
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"ocrtools/internal/config"
	"ocrtools/internal/logger"
	"ocrtools/internal/ocr"
	"ocrtools/internal/preprocess"
)

// SupportedExtensions lists the image extensions picked up in category
// folders, compared case-insensitively.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// ArtifactExtension is the extension of written text artifacts.
const ArtifactExtension = ".txt"

// Options controls a batch run.
type Options struct {
	// Categories are processed in this order.
	Categories []string

	// MaxMegapixels is the downsampling threshold.
	MaxMegapixels float64

	// Language is the hint handed to the OCR engine.
	Language string

	// Workers is the number of files recognized concurrently within a
	// category. Values below 2 process files sequentially.
	Workers int
}

// OptionsFromConfig maps the resolved configuration to run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Categories:    cfg.Categories,
		MaxMegapixels: cfg.MaxImageMP,
		Language:      cfg.Lang,
		Workers:       cfg.Workers,
	}
}

// Processor runs batches with one engine and one set of options. It keeps no
// state between runs.
type Processor struct {
	engine ocr.Engine
	opts   Options
	log    zerolog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(engine ocr.Engine, opts Options) *Processor {
	return &Processor{
		engine: engine,
		opts:   opts,
		log:    logger.WithComponent("batch"),
	}
}

// Run processes every category under inputRoot and writes artifacts under
// outputRoot. The returned error is non-nil only when the run could not start;
// per-file and per-category problems are reported in the Report.
func (p *Processor) Run(ctx context.Context, inputRoot, outputRoot string) (*Report, error) {
	const op = "Run"

	info, err := os.Stat(inputRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.log.Error().Str("input_root", inputRoot).Msg("Input root not found")
			return nil, newRunError(op, inputRoot, ErrRootMissing)
		}
		return nil, newRunError(op, inputRoot, err)
	}
	if !info.IsDir() {
		p.log.Error().Str("input_root", inputRoot).Msg("Input root is not a directory")
		return nil, newRunError(op, inputRoot, ErrRootMissing)
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, newRunError(op, outputRoot, err)
	}

	report := &Report{
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Engine:     p.engine.Name(),
		StartedAt:  time.Now(),
		Categories: make([]CategoryReport, 0, len(p.opts.Categories)),
	}

	p.log.Info().
		Str("input_root", inputRoot).
		Str("output_root", outputRoot).
		Strs("categories", p.opts.Categories).
		Str("engine", report.Engine).
		Str("lang", p.opts.Language).
		Int("workers", p.opts.Workers).
		Msg("Starting batch run")

	for _, category := range p.opts.Categories {
		report.Categories = append(report.Categories, p.runCategory(ctx, category, inputRoot, outputRoot))
	}

	report.FinishedAt = time.Now()

	counts := report.Counts()
	p.log.Info().
		Int("images", counts.Images).
		Int("processed", counts.Processed).
		Int("empty", counts.Empty).
		Int("failed", counts.Failed).
		Int("warnings", counts.Warnings).
		Dur("duration", report.Duration()).
		Msg("Batch run completed")

	return report, nil
}

func (p *Processor) runCategory(ctx context.Context, name, inputRoot, outputRoot string) CategoryReport {
	inDir := filepath.Join(inputRoot, name)
	outDir := filepath.Join(outputRoot, name)
	log := p.log.With().Str("category", name).Logger()

	cat := CategoryReport{
		Name:     name,
		InputDir: inDir,
		Files:    []FileOutcome{},
	}

	if info, err := os.Stat(inDir); err != nil || !info.IsDir() {
		log.Warn().Str("path", inDir).Msg("Category folder not found")
		cat.Warnings = append(cat.Warnings, Warning{Category: name, Kind: WarnCategoryMissing, Path: inDir})
		return cat
	}

	images, err := listImages(inDir)
	if err != nil {
		log.Warn().Err(err).Str("path", inDir).Msg("Category folder could not be listed")
		cat.Warnings = append(cat.Warnings, Warning{Category: name, Kind: WarnCategoryMissing, Path: inDir, Message: err.Error()})
		return cat
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Error().Err(err).Str("path", outDir).Msg("Output folder could not be created")
		cat.Warnings = append(cat.Warnings, Warning{Category: name, Kind: WarnOutputUnavailable, Path: outDir, Message: err.Error()})
		return cat
	}

	if len(images) == 0 {
		log.Warn().Str("path", inDir).Msg("No supported images in category folder")
		cat.Warnings = append(cat.Warnings, Warning{Category: name, Kind: WarnNoImages, Path: inDir})
		return cat
	}

	cat.Images = len(images)
	cat.Files = make([]FileOutcome, len(images))

	if p.opts.Workers < 2 {
		for i, file := range images {
			cat.Files[i] = p.processFile(ctx, log, name, inDir, outDir, file)
		}
		return cat
	}

	// Each goroutine owns one slot of cat.Files, so no lock is needed and the
	// report keeps directory order.
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, file := range images {
		i, file := i, file
		g.Go(func() error {
			cat.Files[i] = p.processFile(ctx, log, name, inDir, outDir, file)
			return nil
		})
	}
	_ = g.Wait()

	return cat
}

// processFile never returns an error; every failure ends up in the outcome.
func (p *Processor) processFile(ctx context.Context, log zerolog.Logger, category, inDir, outDir, file string) FileOutcome {
	start := time.Now()
	src := filepath.Join(inDir, file)
	outcome := FileOutcome{Category: category, Source: src}

	fail := func(kind FailureKind, err error) FileOutcome {
		outcome.Status = StatusFailed
		outcome.Kind = kind
		outcome.err = err
		outcome.Error = err.Error()
		outcome.Duration = time.Since(start)
		log.Error().
			Err(err).
			Str("file", src).
			Str("status", string(outcome.Status)).
			Str("kind", string(kind)).
			Msg("Image failed")
		return outcome
	}

	log.Debug().Str("file", src).Msg("Processing image")

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fail(KindDecode, fmt.Errorf("%w: %v", ErrDecodeFailed, err))
	}

	prepared := preprocess.Prepare(img, p.opts.MaxMegapixels)

	result := ocr.Run(ctx, p.engine, src, prepared, p.opts.Language)
	if result.Err != nil {
		return fail(KindOCR, result.Err)
	}

	artifact := filepath.Join(outDir, ArtifactName(file))
	if err := os.WriteFile(artifact, []byte(result.Text), 0o644); err != nil {
		return fail(KindWrite, fmt.Errorf("%w: %v", ErrWriteFailed, err))
	}

	outcome.Artifact = artifact
	outcome.Chars = utf8.RuneCountInString(result.Text)
	outcome.Duration = time.Since(start)
	outcome.Status = StatusProcessed
	if strings.TrimSpace(result.Text) == "" {
		outcome.Status = StatusEmpty
		log.Warn().
			Str("file", src).
			Str("artifact", artifact).
			Str("status", string(outcome.Status)).
			Msg("Recognized text is empty")
		return outcome
	}

	log.Info().
		Str("file", src).
		Str("artifact", artifact).
		Str("status", string(outcome.Status)).
		Int("chars", outcome.Chars).
		Dur("duration", outcome.Duration).
		Str("snippet", snippet(result.Text, 50)).
		Msg("Image processed")

	return outcome
}

// ArtifactName maps an image file name to its text artifact name.
func ArtifactName(imageName string) string {
	base := filepath.Base(imageName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ArtifactExtension
}

// IsSupportedImage reports whether name has a supported image extension.
func IsSupportedImage(name string) bool {
	ext := filepath.Ext(name)
	for _, supported := range SupportedExtensions {
		if strings.EqualFold(ext, supported) {
			return true
		}
	}
	return false
}

// listImages returns supported image files of dir in directory order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSupportedImage(entry.Name()) {
			continue
		}
		images = append(images, entry.Name())
	}
	return images, nil
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "…"
}
