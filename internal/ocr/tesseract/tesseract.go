// Package tesseract implements ocr.Engine on top of a local Tesseract
// installation through gosseract. Building it requires cgo, libtesseract and
// libleptonica.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"ocrtools/internal/ocr"
)

// Engine runs Tesseract with a fresh client per call.
type Engine struct{}

// New returns a Tesseract engine.
func New() *Engine {
	return &Engine{}
}

// Name implements ocr.Engine.
func (e *Engine) Name() string {
	return "tesseract"
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, languageHint string) (string, error) {
	const op = "Recognize"

	if err := ctx.Err(); err != nil {
		return "", ocr.WrapOCRError(op, err, "")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("encode image: %v", err))
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(languageHint); err != nil {
		return "", ocr.NewOCRError(op, ocr.ErrLanguageUnavailable, err.Error())
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	text, err := client.Text()
	if err != nil {
		return "", classify(op, languageHint, err)
	}
	return text, nil
}

// classify maps Tesseract initialization failures, which almost always mean
// missing traineddata, to ErrLanguageUnavailable.
func classify(op, languageHint string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "failed loading language") ||
		strings.Contains(msg, "error opening data file") ||
		strings.Contains(msg, "failed to initialize tessbaseapi") {
		return ocr.NewOCRError(op, ocr.ErrLanguageUnavailable, fmt.Sprintf("lang=%s: %v", languageHint, err))
	}
	return ocr.NewOCRError(op, ocr.ErrOCRFailed, err.Error())
}
