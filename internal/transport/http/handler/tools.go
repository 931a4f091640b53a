package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"aligncall/internal/app"
)

type toolDispatcher interface {
	DispatchAll(ctx context.Context, calls []app.ToolCall) []app.ToolResult
}

// ToolHandler answers the voice assistant's mid-call tool requests. It always
// replies 200: failures travel back as result text the assistant can speak.
type ToolHandler struct {
	dispatcher toolDispatcher
}

func NewToolHandler(dispatcher toolDispatcher) *ToolHandler {
	return &ToolHandler{dispatcher: dispatcher}
}

func (h *ToolHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "message": "invalid JSON body"})
		return
	}

	msg := gjson.GetBytes(body, "message")
	if msgType := msg.Get("type").String(); msgType != "tool-calls" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "message": "not a tool-calls message", "type": msgType})
		return
	}

	items := msg.Get("toolWithToolCallList").Array()
	if len(items) == 0 {
		items = msg.Get("toolCallList").Array()
	}
	calls := make([]app.ToolCall, 0, len(items))
	for _, item := range items {
		calls = append(calls, app.ParseToolCall([]byte(item.Raw)))
	}

	results := h.dispatcher.DispatchAll(c.Request.Context(), calls)
	if results == nil {
		results = []app.ToolResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
