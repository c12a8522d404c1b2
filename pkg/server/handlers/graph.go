package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/export"
	"github.com/soundprediction/minerva/pkg/server/dto"
	"github.com/soundprediction/minerva/pkg/types"
)

// DefaultMaxUpload bounds uploaded archives when no limit is configured.
const DefaultMaxUpload = 256 << 20

// GraphHandler builds graphs from uploaded corpora.
type GraphHandler struct {
	minerva   minerva.Minerva
	maxUpload int64
	logger    *slog.Logger
}

// NewGraphHandler creates a new graph handler. A non-positive maxUpload uses
// DefaultMaxUpload.
func NewGraphHandler(m minerva.Minerva, maxUpload int64, logger *slog.Logger) *GraphHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{minerva: m, maxUpload: maxUpload, logger: logger}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

// ProcessZip handles POST /process_zip
func (h *GraphHandler) ProcessZip(c *gin.Context) {
	var req dto.OpinionRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return
	}
	src, ok := h.upload(c)
	if !ok {
		return
	}

	doc, err := h.minerva.Opinions(c.Request.Context(), src, &minerva.OpinionOptions{
		AnnotationFilter: req.AnnotationFilter,
		AuthorPath:       req.AuthorXPath,
	})
	if err != nil {
		h.fail(c, "opinion graph", err)
		return
	}
	c.PureJSON(http.StatusOK, doc)
}

// ProcessZipCooc handles POST /process_zip_cooc
func (h *GraphHandler) ProcessZipCooc(c *gin.Context) {
	var req dto.CoocRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return
	}
	src, ok := h.upload(c)
	if !ok {
		return
	}

	doc, err := h.minerva.Cooccurrences(c.Request.Context(), src, &minerva.CoocOptions{
		POSFilter:      req.POSTags(),
		NEFilter:       req.NEFilter,
		TargetProperty: req.TargetProperty,
		MaxDegree:      req.MaxDegree,
	})
	if err != nil {
		h.fail(c, "co-occurrence graph", err)
		return
	}
	c.PureJSON(http.StatusOK, doc)
}

// DataToCSV handles POST /data_to_csv. The body is a graph document; link
// endpoints may be node objects.
func (h *GraphHandler) DataToCSV(c *gin.Context) {
	doc, err := export.DecodeGraph(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload))
	if err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, doc.Data.Links); err != nil {
		writeError(c, http.StatusInternalServerError, dto.CodeInternal, err.Error())
		return
	}
	c.Header("Content-Disposition", "attachment; filename=export.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// upload reads the uploaded archive. It writes the error response itself and
// reports whether the caller can go on.
func (h *GraphHandler) upload(c *gin.Context) (corpus.Source, bool) {
	header, err := c.FormFile(dto.FieldInputZip)
	if err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, fmt.Sprintf("missing %q file: %v", dto.FieldInputZip, err))
		return nil, false
	}
	if header.Size > h.maxUpload {
		writeError(c, http.StatusRequestEntityTooLarge, dto.CodeInvalidRequest, fmt.Sprintf("archive exceeds %d bytes", h.maxUpload))
		return nil, false
	}
	f, err := header.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidRequest, err.Error())
		return nil, false
	}
	src, err := corpus.NewZipSource(data)
	if err != nil {
		writeError(c, http.StatusBadRequest, dto.CodeInvalidArchive, err.Error())
		return nil, false
	}
	return src, true
}

func (h *GraphHandler) fail(c *gin.Context, what string, err error) {
	if errors.Is(err, types.ErrEmptyInput) {
		writeError(c, http.StatusUnprocessableEntity, dto.CodeEmptyCorpus, err.Error())
		return
	}
	h.logger.ErrorContext(c.Request.Context(), "failed to build graph", "graph", what, "error", err)
	writeError(c, http.StatusInternalServerError, dto.CodeInternal, fmt.Sprintf("failed to build %s", what))
}
