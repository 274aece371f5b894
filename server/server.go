// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the local control panel: upload or pick a workbook, tick
// the address columns, start and stop a geocoding job and follow its
// progress.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jairoivo/geocoder/batch"
	"github.com/jairoivo/geocoder/sheet"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Job states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateDone    = "done"
	StateStopped = "stopped"
	StateFailed  = "failed"
)

var (
	errJobRunning   = errors.New("a job is already running")
	errInvalidName  = errors.New("invalid file name")
	errNotWorkbook  = errors.New("only .xlsx and .xlsm workbooks are supported")
	workbookExts    = map[string]bool{".xlsx": true, ".xlsm": true}
	maxUploadMemory = int64(32 << 20)
)

// Status is the state of the current or last job.
type Status struct {
	State      string        `json:"state"`
	Message    string        `json:"message,omitempty"`
	File       string        `json:"file,omitempty"`
	Output     string        `json:"output,omitempty"`
	Current    int           `json:"current"`
	Total      int           `json:"total"`
	Metrics    batch.Metrics `json:"metrics"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Server runs one batch job at a time over the workbooks of a directory.
type Server struct {
	workDir  string
	resolver batch.Resolver
	options  batch.Options
	logger   *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
	status  Status
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewServer creates a control panel over the workbooks in workDir. Jobs use
// resolver and options; the columns picked in the panel replace
// options.AddressColumns.
func NewServer(workDir string, resolver batch.Resolver, options batch.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		workDir:  workDir,
		resolver: resolver,
		options:  options,
		logger:   logger,
		baseCtx:  context.Background(),
		status:   Status{State: StateIdle},
	}
}

// Router returns the HTTP handler of the panel.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)
	r.MaxMultipartMemory = maxUploadMemory
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", s.indexView)
	r.GET("/api/files", s.listFiles)
	r.POST("/api/files", s.uploadFile)
	r.GET("/api/files/:name/columns", s.fileColumns)
	r.GET("/api/files/:name/download", s.downloadFile)
	r.POST("/api/jobs", s.startJob)
	r.POST("/api/jobs/stop", s.stopJob)
	r.GET("/api/jobs/status", s.jobStatus)

	return r
}

func (s *Server) accessLog(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()

	s.logger.Debug("http request",
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.Int("status", ctx.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)))
}

// Run serves the panel on addr until ctx is done. A running job is stopped,
// and its progress saved, before Run returns.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("control panel listening", zap.String("addr", "http://"+addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return eris.Wrap(err, "serving control panel")
	case <-ctx.Done():
	}

	s.Stop()
	s.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Status returns a snapshot of the job status.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Stop requests the running job, if any, to stop. It reports whether there
// was one.
func (s *Server) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State != StateRunning || s.cancel == nil {
		return false
	}

	s.cancel()
	s.status.Message = "stopping"

	return true
}

// Wait blocks until the current job, if any, has finished.
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// path returns the location of the workbook name inside the work directory.
// Names must be plain file names.
func (s *Server) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return "", errInvalidName
	}

	if !workbookExts[strings.ToLower(filepath.Ext(name))] {
		return "", errNotWorkbook
	}

	return filepath.Join(s.workDir, name), nil
}

// Begin starts a job over file. It fails when a job is already running.
func (s *Server) Begin(file string, columns []string) error {
	input, err := s.path(file)
	if err != nil {
		return err
	}

	if _, err := os.Stat(input); err != nil {
		return eris.Wrapf(err, "opening %s", file)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == StateRunning {
		return errJobRunning
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	now := time.Now()

	s.cancel = cancel
	s.done = make(chan struct{})
	s.status = Status{State: StateRunning, Message: "starting", File: file, StartedAt: &now}

	opts := s.options
	opts.AddressColumns = columns

	go s.runJob(ctx, cancel, input, opts, s.done)

	return nil
}

func (s *Server) runJob(ctx context.Context, cancel context.CancelFunc, input string, opts batch.Options, done chan struct{}) {
	defer close(done)
	defer cancel()

	output := sheet.DefaultOutputPath(input)
	logger := s.logger.With(zap.String("input", input))

	m, err := s.process(ctx, input, output, opts, logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.status.FinishedAt = &now
	s.status.Metrics = m

	switch {
	case err == nil:
		s.status.State = StateDone
		s.status.Message = batch.DoneMessage
		s.status.Output = filepath.Base(output)
	case errors.Is(err, context.Canceled):
		s.status.State = StateStopped
		s.status.Message = "stopped, progress saved"
		s.status.Output = filepath.Base(output)
	default:
		logger.Error("job failed", zap.Error(err))

		s.status.State = StateFailed
		s.status.Message = err.Error()
	}
}

func (s *Server) process(ctx context.Context, input, output string, opts batch.Options, logger *zap.Logger) (batch.Metrics, error) {
	wb, resumed, err := sheet.PrepareOutput(input, output, "")
	if err != nil {
		return batch.Metrics{}, err
	}
	defer wb.Close()

	if resumed {
		logger.Info("resuming from existing output", zap.String("output", output))
	}

	d := &batch.Driver{Resolver: s.resolver, Options: opts, Logger: logger}

	return d.Run(ctx, wb, output, func(current, total int) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.status.Current = current
		s.status.Total = total
		s.status.Message = "geocoding"
	})
}
