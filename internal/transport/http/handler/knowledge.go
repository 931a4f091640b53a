package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aligncall/internal/app"
	"aligncall/internal/pkg/pdfextract"
	"aligncall/internal/transport/http/response"
)

type knowledgeIngester interface {
	IngestFile(ctx context.Context, name string, data []byte) (*app.IngestResult, error)
	IngestTexts(ctx context.Context, source string, passages []string) (*app.IngestResult, error)
}

type knowledgePreviewer interface {
	Preview(ctx context.Context, query string) (*app.KnowledgePreview, error)
}

type geoLoader interface {
	Load(ctx context.Context, data []byte, replace bool) (*app.GeoIngestResult, error)
}

// KnowledgeHandler lets operators maintain and preview the knowledge base
// and the clinic directory.
type KnowledgeHandler struct {
	ingester knowledgeIngester
	preview  knowledgePreviewer
	geo      geoLoader
}

func NewKnowledgeHandler(ingester knowledgeIngester, preview knowledgePreviewer, geo geoLoader) *KnowledgeHandler {
	return &KnowledgeHandler{ingester: ingester, preview: preview, geo: geo}
}

type IngestTextsRequest struct {
	Source   string   `json:"source"`
	Passages []string `json:"passages" binding:"required,min=1"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Ingest accepts either a multipart file (json, txt, md, pdf) or a JSON body
// of passages.
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var (
		result *app.IngestResult
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, data, ok := readUpload(c, pdfextract.MaxSize)
		if !ok {
			return
		}
		result, err = h.ingester.IngestFile(c.Request.Context(), name, data)
	} else {
		var req IngestTextsRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}
		result, err = h.ingester.IngestTexts(c.Request.Context(), req.Source, req.Passages)
	}

	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyCorpus), errors.Is(err, app.ErrUnsupportedFormat):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDimensionMismatch):
			response.Error(c, http.StatusConflict, response.CodeDimensionMismatch, err.Error())
		case errors.Is(err, pdfextract.ErrTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest knowledge failed")
		}
		return
	}
	response.OK(c, result)
}

// Search previews what the phone agent would answer for a question.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	preview, err := h.preview.Preview(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusBadGateway, response.CodeInternalServer, "knowledge lookup failed")
		return
	}
	response.OK(c, preview)
}

// LoadGeo imports a clinic directory workbook. replace=true clears the
// existing directory first.
func (h *KnowledgeHandler) LoadGeo(c *gin.Context) {
	_, data, ok := readUpload(c, 50<<20)
	if !ok {
		return
	}
	replace, _ := strconv.ParseBool(c.DefaultPostForm("replace", "false"))
	result, err := h.geo.Load(c.Request.Context(), data, replace)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingColumns), errors.Is(err, app.ErrNoGeoRecords):
			response.Error(c, http.StatusBadRequest, response.CodeMissingColumns, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load geo directory failed")
		}
		return
	}
	response.OK(c, result)
}

func readUpload(c *gin.Context, limit int64) (string, []byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return "", nil, false
	}
	if file.Size > limit {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "file too large")
		return "", nil, false
	}
	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read file failed")
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read file failed")
		return "", nil, false
	}
	return file.Filename, data, true
}
