package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"ocrtools/internal/delivery"
	"ocrtools/internal/extract"
	"ocrtools/internal/logger"
	"ocrtools/internal/metrics"
	"ocrtools/internal/sheets"
)

var extractCmd = &cobra.Command{
	Use:   "extract [txt-files-or-folders...]",
	Short: "Extract total, IVA and NIT from OCR text files",
	Long: `Read .txt files (folders are searched recursively) and extract the total,
the IVA and the NIT or invoice number of each one.

The result is a zip (or a folder, when --output does not end in .zip) with:
  filtrado_resultados.json  every record, absent fields as null
  no_total/<name>           original text of each file without a total

Without arguments the output root from config.ini is read.

With --sheet the records are also appended to a Google Sheet. Credentials are
taken from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.`,
	Example: `  # Extract from the batch output into filtrado_resultados.zip
  ocrtools extract

  # Extract selected files into a folder
  ocrtools extract Orden/resultados/Gastos -o ./filtrado

  # Also append the records to a Google Sheet
  ocrtools extract --sheet "https://docs.google.com/spreadsheets/d/<id>/edit"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "filtrado_resultados.zip", "Output zip file, or folder when not ending in .zip")
	extractCmd.Flags().Bool("json", false, "Print the records as JSON instead of writing a delivery")
	extractCmd.Flags().String("sheet", "", "Google Sheets URL to append records to (default: GOOGLE_SHEET_URL)")
	extractCmd.Flags().String("sheet-name", sheets.DefaultSheetName, "Sheet tab to append records to")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	sheetName, _ := cmd.Flags().GetString("sheet-name")

	if sheetURL == "" {
		sheetURL = os.Getenv("GOOGLE_SHEET_URL")
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.OutputRoot}
	}

	artifacts, err := extract.ReadArtifacts(paths...)
	if err != nil {
		return fmt.Errorf("failed to read text files: %w", err)
	}
	if len(artifacts) == 0 {
		fmt.Println("No se encontraron archivos .txt.")
		return nil
	}

	log.Info().
		Strs("paths", paths).
		Int("files", len(artifacts)).
		Msg("Extracting fields")

	result := extract.Default().Aggregate(artifacts)
	metrics.ObserveExtraction(result)

	for _, u := range result.Unmatched {
		log.Warn().Str("file", u.Name).Msg("No total found")
	}

	if jsonOutput {
		return printJSON(result.Records)
	}

	if err := writeDelivery(outputPath, result); err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 FILTRADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Archivos: %d\n", len(result.Records))
	printExtraction(result, "")
	fmt.Printf("Salida: %s\n", outputPath)

	if sheetURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		fmt.Println("Escribiendo registros en Google Sheet...")
		sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		if err := sheetsService.AppendRecords(ctx, result.Records, sheetName); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}
		fmt.Printf("Hoja: %s\n", sheetName)
		fmt.Printf("Filas agregadas: %d\n", len(result.Records))
	}

	fmt.Println(strings.Repeat("=", 50))

	log.Info().
		Int("records", len(result.Records)).
		Int("unmatched", result.Summary.UnmatchedCount).
		Str("output", outputPath).
		Msg("Extraction completed")

	return nil
}

func writeDelivery(outputPath string, result extract.Result) error {
	if !strings.EqualFold(filepath.Ext(outputPath), ".zip") {
		if err := delivery.WriteDir(outputPath, result); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := delivery.WritePackage(&buf, result); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
