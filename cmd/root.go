package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ocrtools/internal/config"
	"ocrtools/internal/logger"
)

var version = "1.0.0"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ocrtools",
	Short: "Batch OCR for scanned invoices and receipts",
	Long: `ocrtools converts folders of scanned documents into text and pulls the
total, IVA and NIT or invoice number out of that text.

Images are expected under <input_root>/<category>/, one folder per category
(Gastos and Ganancias by default). Settings live in the [General] section of
config.ini, which is created with defaults on first use. Every option can be
overridden with an OCRTOOLS_<KEY> environment variable.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded

		logger.WithComponent("root").Debug().
			Str("config", configPath).
			Str("version", version).
			Msg("Configuration loaded")
		return nil
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the INI configuration file")
}
