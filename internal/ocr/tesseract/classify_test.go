package tesseract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"ocrtools/internal/ocr"
)

func TestClassify(t *testing.T) {
	langErr := classify("Recognize", "xyz", errors.New("failed to initialize TessBaseAPI with code -1: Failed loading language 'xyz'"))
	assert.True(t, errors.Is(langErr, ocr.ErrLanguageUnavailable))
	assert.True(t, errors.Is(langErr, ocr.ErrOCRFailed))

	other := classify("Recognize", "spa", errors.New("pix is nil"))
	assert.True(t, errors.Is(other, ocr.ErrOCRFailed))
	assert.False(t, errors.Is(other, ocr.ErrLanguageUnavailable))
}
