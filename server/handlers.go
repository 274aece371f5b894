// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jairoivo/geocoder/sheet"
	"go.uber.org/zap"
)

func (s *Server) indexView(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "index.html", gin.H{
		"columns": s.options.AddressColumns,
	})
}

func (s *Server) listFiles(ctx *gin.Context) {
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	files := []string{}

	for _, e := range entries {
		if _, err := s.path(e.Name()); err == nil && !e.IsDir() {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files)

	ctx.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) uploadFile(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})

		return
	}

	name := filepath.Base(strings.ReplaceAll(fh.Filename, `\`, "/"))

	path, err := s.path(name)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := ctx.SaveUploadedFile(fh, path); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	columns, err := sheet.Columns(path, "")
	if err != nil {
		_ = os.Remove(path)

		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	s.logger.Info("workbook uploaded", zap.String("file", name), zap.Int64("size", fh.Size))

	ctx.JSON(http.StatusOK, gin.H{"file": name, "columns": columns})
}

// existing resolves the :name parameter to an existing workbook, writing the
// error response when it cannot.
func (s *Server) existing(ctx *gin.Context) (string, bool) {
	path, err := s.path(ctx.Param("name"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return "", false
	}

	if _, err := os.Stat(path); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "file not found"})

		return "", false
	}

	return path, true
}

func (s *Server) fileColumns(ctx *gin.Context) {
	path, ok := s.existing(ctx)
	if !ok {
		return
	}

	columns, err := sheet.Columns(path, "")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"file": ctx.Param("name"), "columns": columns})
}

func (s *Server) downloadFile(ctx *gin.Context) {
	path, ok := s.existing(ctx)
	if !ok {
		return
	}

	ctx.FileAttachment(path, filepath.Base(path))
}

type jobRequest struct {
	File    string   `json:"file"`
	Columns []string `json:"columns"`
}

func (s *Server) startJob(ctx *gin.Context) {
	var req jobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if req.File == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})

		return
	}

	columns := make([]string, 0, len(req.Columns))

	for _, c := range req.Columns {
		if strings.TrimSpace(c) != "" {
			columns = append(columns, c)
		}
	}

	if len(columns) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "select at least one address column"})

		return
	}

	err := s.Begin(req.File, columns)

	switch {
	case err == nil:
		ctx.JSON(http.StatusAccepted, s.Status())
	case errors.Is(err, errJobRunning):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errInvalidName), errors.Is(err, errNotWorkbook):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, os.ErrNotExist):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) stopJob(ctx *gin.Context) {
	if !s.Stop() {
		ctx.JSON(http.StatusConflict, gin.H{"error": "no job is running"})

		return
	}

	ctx.JSON(http.StatusAccepted, s.Status())
}

func (s *Server) jobStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.Status())
}
