package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aligncall/internal/app"
	"aligncall/internal/model"
	"aligncall/internal/transport/http/middleware"
	"aligncall/internal/transport/http/response"
)

type campaignService interface {
	Upload(ctx context.Context, in app.UploadInput) (*app.UploadResult, error)
	BatchCalls(ctx context.Context, batchID uint) ([]model.Call, error)
	ListBatches(ctx context.Context, limit int) ([]model.Batch, error)
}

type CampaignHandler struct {
	campaigns      campaignService
	maxUploadBytes int64
}

func NewCampaignHandler(campaigns campaignService, maxUploadBytes int64) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, maxUploadBytes: maxUploadBytes}
}

// CallView is a call as reported to operators. call_result stays null until
// the call has been analyzed.
type CallView struct {
	ID          uint              `json:"id"`
	BatchID     uint              `json:"batch_id"`
	User        model.Lead        `json:"user"`
	Status      model.CallStatus  `json:"status"`
	VoiceCallID *string           `json:"vapi_call_id"`
	Error       string            `json:"error,omitempty"`
	CallResult  *model.CallResult `json:"call_result"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func newCallView(c *model.Call) CallView {
	return CallView{
		ID:          c.ID,
		BatchID:     c.BatchID,
		User:        c.Lead,
		Status:      c.Status.Normalize(),
		VoiceCallID: c.VoiceCallID,
		Error:       c.Error,
		CallResult:  c.CallResultOrNil(),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (h *CampaignHandler) Upload(c *gin.Context) {
	operatorID, _ := middleware.OperatorID(c)

	limit := h.maxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	name, content, ok := readUpload(c, limit)
	if !ok {
		return
	}

	result, err := h.campaigns.Upload(c.Request.Context(), app.UploadInput{
		OperatorID: operatorID,
		FileName:   name,
		Content:    content,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFile):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
		case errors.Is(err, app.ErrMissingColumns):
			response.Error(c, http.StatusBadRequest, response.CodeMissingColumns, err.Error())
		case errors.Is(err, app.ErrNoLeads):
			response.Error(c, http.StatusBadRequest, response.CodeNoLeads, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload campaign failed")
		}
		return
	}
	response.OK(c, result)
}

func (h *CampaignHandler) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	batches, err := h.campaigns.ListBatches(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list batches failed")
		return
	}
	response.OK(c, batches)
}

type batchCallsView struct {
	BatchID    uint       `json:"batch_id"`
	TotalCalls int        `json:"total_calls"`
	Calls      []CallView `json:"calls"`
}

func (h *CampaignHandler) batchCalls(c *gin.Context, param string) (*batchCallsView, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid batch id")
		return nil, false
	}
	calls, err := h.campaigns.BatchCalls(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, app.ErrBatchNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeBatchNotFound, "No calls found for this batch")
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list calls failed")
		}
		return nil, false
	}
	view := &batchCallsView{BatchID: uint(id), TotalCalls: len(calls), Calls: make([]CallView, len(calls))}
	for i := range calls {
		view.Calls[i] = newCallView(&calls[i])
	}
	return view, true
}

// BatchCalls serves the dashboard route inside the response envelope.
func (h *CampaignHandler) BatchCalls(c *gin.Context) {
	if view, ok := h.batchCalls(c, "id"); ok {
		response.OK(c, view)
	}
}

// BatchCallsPlain serves /calls/batch/:batch_id with the bare body older
// clients read.
func (h *CampaignHandler) BatchCallsPlain(c *gin.Context) {
	if view, ok := h.batchCalls(c, "batch_id"); ok {
		c.JSON(http.StatusOK, view)
	}
}
