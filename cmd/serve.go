package cmd

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"ocrtools/internal/logger"
	"ocrtools/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and filter endpoints over HTTP",
	Long: `Start the HTTP server.

  POST /upload          multipart "file": zip with Orden/<category>/ images.
                        Returns resultados.zip with one .txt per image.
                        Add ?extract=1 to include the extraction results.
  POST /filtrar_textos  multipart "txt_files": one or more .txt files.
                        Returns filtrado_resultados.zip; the summary is in
                        the X-Extraction-Summary header.
  GET  /healthz
  GET  /metrics         Prometheus metrics`,
	Example: `  ocrtools serve
  ocrtools serve --addr :8080 --engine vision`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: listen_addr from config)")
	serveCmd.Flags().String("engine", "", "OCR engine: tesseract or vision (default: engine from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	engineName, _ := cmd.Flags().GetString("engine")

	serverCfg := *cfg
	if addr != "" {
		serverCfg.ListenAddr = addr
	}
	if engineName != "" {
		serverCfg.Engine = engineName
	}

	if !strings.EqualFold(serverCfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := createSignalContext(log)
	defer cancel()

	engine, closeEngine, err := createEngine(ctx, serverCfg.Engine, log)
	if err != nil {
		return err
	}
	defer closeEngine()

	return server.New(&serverCfg, engine).Run(ctx)
}
