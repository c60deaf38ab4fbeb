// Package server is the HTTP front end of the pipeline.
//
// Routes:
//
//	POST /upload          zip with an Orden/<category>/ tree -> zip of text artifacts
//	POST /filtrar_textos  .txt files (txt_files) -> extraction delivery zip
//	GET  /healthz
//	GET  /metrics
//
// Every request works in its own temporary directory, removed when the
// request ends.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"ocrtools/internal/archive"
	"ocrtools/internal/batch"
	"ocrtools/internal/config"
	"ocrtools/internal/delivery"
	"ocrtools/internal/extract"
	"ocrtools/internal/logger"
	"ocrtools/internal/metrics"
	"ocrtools/internal/ocr"
)

// Response headers carrying JSON summaries next to a zip body.
const (
	HeaderRunSummary        = "X-Run-Summary"
	HeaderExtractionSummary = "X-Extraction-Summary"
	HeaderRequestID         = "X-Request-ID"
)

const maxUploadBytes = 512 << 20

// Server wires the batch processor and the extractor to HTTP routes.
type Server struct {
	cfg       *config.Config
	engine    ocr.Engine
	processor *batch.Processor
	extractor *extract.Extractor
	limits    archive.Limits
	router    *gin.Engine
	log       zerolog.Logger
}

// New builds the server and its routes.
func New(cfg *config.Config, engine ocr.Engine) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		processor: batch.NewProcessor(engine, batch.OptionsFromConfig(cfg)),
		extractor: extract.Default(),
		limits:    archive.DefaultLimits,
		log:       logger.WithComponent("server"),
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes(r)
	s.router = r

	return s
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.POST("/upload", s.uploadHandler)
	r.POST("/filtrar_textos", s.filterHandler)
	r.GET("/healthz", s.healthHandler)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.ListenAddr).Str("engine", s.engine.Name()).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		c.Set("log", logger.WithRequestID(requestID).With().Str("component", "server").Logger())

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordRequestDuration(route, strconv.Itoa(status), time.Since(start).Seconds())
		s.requestLog(c).Info().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

func (s *Server) requestLog(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("log"); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return &l
		}
	}
	return &s.log
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": s.engine.Name()})
}

// uploadHandler runs the batch over an uploaded archive. With extract=1 the
// extraction delivery is added next to the category folders.
func (s *Server) uploadHandler(c *gin.Context) {
	log := s.requestLog(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file part"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no selected file"})
		return
	}

	workspace, err := os.MkdirTemp("", "ocrtools-upload-*")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create workspace")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "workspace unavailable"})
		return
	}
	defer os.RemoveAll(workspace)

	zipPath := filepath.Join(workspace, "upload.zip")
	if err := c.SaveUploadedFile(fh, zipPath); err != nil {
		log.Error().Err(err).Msg("Failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload could not be stored"})
		return
	}

	extracted := filepath.Join(workspace, "input")
	if _, err := s.limits.Expand(zipPath, extracted); err != nil {
		log.Warn().Err(err).Str("file", fh.Filename).Msg("Rejected upload archive")
		if errors.Is(err, archive.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zip archive: " + err.Error()})
		return
	}

	inputRoot := resolveInputRoot(extracted, s.cfg)
	outputRoot := filepath.Join(workspace, "resultados")

	report, err := s.processor.Run(c.Request.Context(), inputRoot, outputRoot)
	if err != nil {
		if errors.Is(err, batch.ErrRootMissing) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("archive has no %s folder", filepath.Base(s.cfg.InputRoot)),
			})
			return
		}
		log.Error().Err(err).Msg("Batch run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	metrics.ObserveReport(report)

	summary, err := json.Marshal(report.Counts())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary encoding failed"})
		return
	}
	c.Header(HeaderRunSummary, string(summary))

	if wantExtraction(c) {
		artifacts, err := extract.ReadArtifacts(outputRoot)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read artifacts")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
			return
		}
		result := s.extractor.Aggregate(artifacts)
		metrics.ObserveExtraction(result)
		if err := delivery.WriteDir(outputRoot, result); err != nil {
			log.Error().Err(err).Msg("Failed to write extraction delivery")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
			return
		}
		header, err := delivery.SummaryHeader(result)
		if err == nil {
			c.Header(HeaderExtractionSummary, header)
		}
	}

	var buf bytes.Buffer
	if err := archive.PackDir(&buf, outputRoot); err != nil {
		log.Error().Err(err).Msg("Failed to pack results")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "packing failed"})
		return
	}

	sendZip(c, "resultados.zip", buf.Bytes())
}

// filterHandler runs extraction over uploaded text files.
func (s *Server) filterHandler(c *gin.Context) {
	log := s.requestLog(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil || len(form.File["txt_files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no .txt files were sent"})
		return
	}

	files := form.File["txt_files"]
	artifacts := make([]extract.Artifact, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file " + fh.Filename})
			return
		}
		artifacts = append(artifacts, extract.NewArtifact(fh.Filename, data))
	}

	result := s.extractor.Aggregate(artifacts)
	metrics.ObserveExtraction(result)

	header, err := delivery.SummaryHeader(result)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary encoding failed"})
		return
	}

	var buf bytes.Buffer
	if err := delivery.WritePackage(&buf, result); err != nil {
		log.Error().Err(err).Msg("Failed to write delivery")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "packing failed"})
		return
	}

	log.Info().
		Int("files", len(artifacts)).
		Int("matched", result.MatchedCount()).
		Int("unmatched", result.Summary.UnmatchedCount).
		Msg("Texts filtered")

	c.Header(HeaderExtractionSummary, header)
	sendZip(c, "filtrado_resultados.zip", buf.Bytes())
}

// resolveInputRoot finds the input root inside an extracted archive: a folder
// named like the configured input root, or the archive root itself when the
// category folders sit at the top level. When neither exists the named path
// is returned so the run reports ErrRootMissing.
func resolveInputRoot(extracted string, cfg *config.Config) string {
	named := filepath.Join(extracted, filepath.Base(cfg.InputRoot))
	if isDir(named) {
		return named
	}
	for _, category := range cfg.Categories {
		if isDir(filepath.Join(extracted, category)) {
			return extracted
		}
	}
	return named
}

func wantExtraction(c *gin.Context) bool {
	v := c.Query("extract")
	if v == "" {
		v = c.PostForm("extract")
	}
	ok, _ := strconv.ParseBool(v)
	return ok
}

func sendZip(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/zip", data)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
