package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ocrtools/internal/batch"
	"ocrtools/internal/logger"
	"ocrtools/internal/ocr"
	"ocrtools/internal/preprocess"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Recognize the text of a single image",
	Long: `Run the same preprocessing and OCR as the batch on one image and print the
text. Useful to check an engine, a language pack or a difficult scan before
processing a whole folder.

Engines:
  tesseract - local Tesseract (needs libtesseract and the traineddata for lang)
  vision    - Google Cloud Vision; needs GOOGLE_APPLICATION_CREDENTIALS or
              GOOGLE_CREDENTIALS`,
	Example: `  # Print the text of a receipt
  ocrtools ocr Orden/Gastos/recibo.jpg

  # Save the text to a file
  ocrtools ocr recibo.jpg -o recibo.txt

  # Use English data and JSON output
  ocrtools ocr invoice.png --lang eng --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
	Engine             string    `json:"engine"`
	Language           string    `json:"language"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().String("engine", "", "OCR engine: tesseract or vision (default: engine from config)")
	ocrCmd.Flags().String("lang", "", "Language hint (default: lang from config)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	engineName, _ := cmd.Flags().GetString("engine")
	lang, _ := cmd.Flags().GetString("lang")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if engineName == "" {
		engineName = cfg.Engine
	}
	if lang == "" {
		lang = cfg.Lang
	}

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Str("output", outputPath).
		Str("engine", engineName).
		Str("lang", lang).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	signalCtx, cancelSignal := createSignalContext(log)
	defer cancelSignal()
	ctx, cancel := context.WithTimeout(signalCtx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	engine, closeEngine, err := createEngine(ctx, engineName, log)
	if err != nil {
		return err
	}
	defer closeEngine()

	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		log.Error().Err(err).Str("file", imagePath).Msg("Failed to decode image")
		return fmt.Errorf("%w: %v", batch.ErrDecodeFailed, err)
	}
	prepared := preprocess.Prepare(img, cfg.MaxImageMP)

	log.Info().
		Str("file", imagePath).
		Int("width", prepared.Bounds().Dx()).
		Int("height", prepared.Bounds().Dy()).
		Msg("Image prepared")

	result := ocr.Run(ctx, engine, imagePath, prepared, lang)
	if result.Err != nil {
		log.Error().Err(result.Err).Msg("OCR processing failed")
		return fmt.Errorf("OCR processing failed: %s", handleOCRError(result.Err))
	}

	log.Info().
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR processing completed successfully")

	var outputData []byte
	if jsonOutput {
		outputData, err = json.MarshalIndent(OCROutput{
			Text:               result.Text,
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			Engine:             result.Engine,
			Language:           lang,
			Width:              prepared.Bounds().Dx(),
			Height:             prepared.Bounds().Dy(),
			ProcessedAt:        time.Now(),
			ProcessingDuration: result.ProcessingDuration.String(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		outputData = []byte(result.Text)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0o644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}

// validateImageFile checks that the path is a readable, non-empty image file
func validateImageFile(imagePath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", imagePath).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	if !batch.IsSupportedImage(imagePath) {
		log.Warn().
			Str("file", imagePath).
			Str("supported", strings.Join(batch.SupportedExtensions, " ")).
			Msg("File extension is not one the batch picks up")
	}

	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", imagePath)
	}

	return fileInfo, nil
}
