package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/app"
)

// AIHandler serves AI-assisted requirement analysis.
type AIHandler struct {
	service *app.AIService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(service *app.AIService) *AIHandler {
	return &AIHandler{service: service}
}

// AnalyzeRequest is the body of POST /ai/analyze. Images are data URIs or raw base64.
type AnalyzeRequest struct {
	Requirements string   `json:"requirements" validate:"max=20000"`
	Images       []string `json:"images"       validate:"max=8,dive,datauri"`
}

// BreakdownItemResponse is one suggested quote line.
type BreakdownItemResponse struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimatedHours"`
	SuggestedRole  string  `json:"suggestedRole"`
	HourlyRate     float64 `json:"hourlyRate"`
	Amount         float64 `json:"amount"`
}

// BreakdownResponse is the body returned by POST /ai/analyze.
type BreakdownResponse struct {
	Summary string                  `json:"summary"`
	Items   []BreakdownItemResponse `json:"items"`
}

// Analyze handles POST /ai/analyze.
func (h *AIHandler) Analyze(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}

	breakdown, err := h.service.Analyze(c.Request.Context(), userID, app.BreakdownRequest{
		Requirements: req.Requirements,
		Images:       req.Images,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp := BreakdownResponse{Summary: breakdown.Summary, Items: make([]BreakdownItemResponse, 0, len(breakdown.Items))}
	for _, it := range breakdown.Items {
		resp.Items = append(resp.Items, BreakdownItemResponse{
			ID:             it.ID,
			Description:    it.Description,
			EstimatedHours: it.EstimatedHours,
			SuggestedRole:  string(it.SuggestedRole),
			HourlyRate:     it.HourlyRate,
			Amount:         it.Amount,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the AI routes on rg.
func (h *AIHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/analyze", h.Analyze)
}
