// Package ocr defines the recognition capability used by the batch pipeline.
//
// An Engine turns a prepared raster image into text, given a language hint
// that selects the trained model (Tesseract codes such as "spa" or "eng").
// Implementations live in sub-packages:
//   - tesseract: local Tesseract through gosseract (requires libtesseract and
//     the tessdata files for the requested language)
//   - vision: Google Cloud Vision document text detection
//
// Engines must not share mutable state between calls, so that every call can
// be retried or skipped independently and engines can be used from several
// goroutines.
package ocr

import (
	"context"
	"image"
	"time"
)

// Engine recognizes text in images.
type Engine interface {
	// Recognize returns the text found in img. Failures are reported as
	// *OCRError values matching ErrOCRFailed or ErrLanguageUnavailable.
	// An image without text is not a failure: the result is "".
	Recognize(ctx context.Context, img image.Image, languageHint string) (string, error)

	// Name identifies the engine in logs and reports.
	Name() string
}

// OCRResult is the outcome of recognizing one image. Exactly one of Text or
// Err is meaningful.
type OCRResult struct {
	// Source is the path of the recognized image.
	Source string `json:"source"`

	// Text is the recognized text when Err is nil.
	Text string `json:"text"`

	// Err is the recognition failure, if any.
	Err error `json:"-"`

	// Engine is the name of the engine that produced the result.
	Engine string `json:"engine"`

	// ProcessingDuration is how long recognition took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Run calls engine and wraps the outcome into an OCRResult.
func Run(ctx context.Context, engine Engine, source string, img image.Image, languageHint string) OCRResult {
	start := time.Now()
	text, err := engine.Recognize(ctx, img, languageHint)
	result := OCRResult{
		Source:             source,
		Engine:             engine.Name(),
		ProcessingDuration: time.Since(start),
	}
	if err != nil {
		result.Err = WrapOCRError("Recognize", err, source)
		return result
	}
	result.Text = text
	return result
}
