package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/domain"
)

// QuoteHandler handles the quote lifecycle endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// ItemRequest is a quote line as submitted. Omitted numbers are derived by the service.
type ItemRequest struct {
	Description    string   `json:"description"`
	EstimatedHours *float64 `json:"estimatedHours" validate:"omitempty,gte=0"`
	SuggestedRole  string   `json:"suggestedRole"`
	HourlyRate     *float64 `json:"hourlyRate"     validate:"omitempty,gte=0"`
	Amount         *float64 `json:"amount"         validate:"omitempty,gte=0"`
}

// CreateQuoteRequest is the body of POST /quotes.
type CreateQuoteRequest struct {
	CustomerID   string        `json:"customerId"`
	CustomerName string        `json:"customerName"`
	ProjectName  string        `json:"projectName"`
	ProjectType  string        `json:"projectType"`
	Description  string        `json:"description"`
	PaymentTerms string        `json:"paymentTerms"`
	ValidityDays *int          `json:"validityDays" validate:"omitempty,gte=1"`
	ExpectedDays *int          `json:"expectedDays" validate:"omitempty,gte=0"`
	Items        []ItemRequest `json:"items"        validate:"dive"`
}

// UpdateQuoteRequest is the body of PUT /quotes/:id. Omitted fields are left unchanged;
// items, when present, replace the whole item set.
type UpdateQuoteRequest struct {
	CustomerID   *string       `json:"customerId"`
	CustomerName *string       `json:"customerName"`
	ProjectName  *string       `json:"projectName"`
	ProjectType  *string       `json:"projectType"`
	Description  *string       `json:"description"`
	Status       *string       `json:"status"       validate:"omitempty,quotestatus"`
	PaymentTerms *string       `json:"paymentTerms"`
	ValidityDays *int          `json:"validityDays" validate:"omitempty,gte=1"`
	ExpectedDays *int          `json:"expectedDays" validate:"omitempty,gte=0"`
	Items        []ItemRequest `json:"items"        validate:"omitempty,dive"`
}

// ListQuotesQuery holds the filters of GET /quotes.
type ListQuotesQuery struct {
	dto.PaginationRequest

	Status     string `form:"status"     validate:"omitempty,quotestatus"`
	CustomerID string `form:"customerId" validate:"omitempty,uuid"`
}

// ItemResponse is a priced quote line.
type ItemResponse struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimatedHours"`
	SuggestedRole  string  `json:"suggestedRole"`
	HourlyRate     float64 `json:"hourlyRate"`
	Amount         float64 `json:"amount"`
}

// QuoteResponse is the HTTP representation of a quote.
// Items is omitted in listings, which carry ItemCount instead.
type QuoteResponse struct {
	ID           string         `json:"id"`
	CustomerID   *string        `json:"customerId"`
	CustomerName string         `json:"customerName"`
	ProjectName  string         `json:"projectName"`
	ProjectType  string         `json:"projectType"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	TotalAmount  float64        `json:"totalAmount"`
	TotalMargin  float64        `json:"totalMargin"`
	TotalCost    float64        `json:"totalCost"`
	PaymentTerms string         `json:"paymentTerms"`
	ValidityDays int            `json:"validityDays"`
	ExpectedDays *int           `json:"expectedDays,omitempty"`
	ItemCount    int            `json:"itemCount"`
	Items        []ItemResponse `json:"items,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func toQuoteResponse(q *domain.Quote) *QuoteResponse {
	resp := &QuoteResponse{
		ID:           q.ID,
		CustomerID:   q.CustomerID,
		CustomerName: q.CustomerName,
		ProjectName:  q.ProjectName,
		ProjectType:  q.ProjectType,
		Description:  q.Description,
		Status:       string(q.Status),
		TotalAmount:  q.TotalAmount,
		TotalMargin:  q.TotalMargin,
		TotalCost:    q.TotalCost,
		PaymentTerms: q.PaymentTerms,
		ValidityDays: q.ValidityDays,
		ExpectedDays: q.ExpectedDays,
		ItemCount:    q.ItemCount,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}

	if q.Items != nil {
		resp.ItemCount = len(q.Items)
		resp.Items = make([]ItemResponse, 0, len(q.Items))

		for _, it := range q.Items {
			resp.Items = append(resp.Items, ItemResponse{
				ID:             it.ID,
				Description:    it.Description,
				EstimatedHours: it.EstimatedHours,
				SuggestedRole:  string(it.SuggestedRole),
				HourlyRate:     it.HourlyRate,
				Amount:         it.Amount,
			})
		}
	}

	return resp
}

func toDrafts(items []ItemRequest) []domain.ItemDraft {
	if items == nil {
		return nil
	}

	drafts := make([]domain.ItemDraft, 0, len(items))
	for _, it := range items {
		drafts = append(drafts, domain.ItemDraft{
			Description:    it.Description,
			EstimatedHours: it.EstimatedHours,
			SuggestedRole:  it.SuggestedRole,
			HourlyRate:     it.HourlyRate,
			Amount:         it.Amount,
		})
	}

	return drafts
}

// Create handles POST /quotes.
func (h *QuoteHandler) Create(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req CreateQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	quote, err := h.service.Create(c.Request.Context(), userID, app.QuoteInput{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		ProjectName:  req.ProjectName,
		ProjectType:  req.ProjectType,
		Description:  req.Description,
		PaymentTerms: req.PaymentTerms,
		ValidityDays: req.ValidityDays,
		ExpectedDays: req.ExpectedDays,
		Items:        toDrafts(req.Items),
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuoteResponse(quote))
}

// List handles GET /quotes, newest first with cursor pagination.
func (h *QuoteHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var query ListQuotesQuery
	if !bindQuery(c, &query) {
		return
	}

	after, err := query.QuoteCursor()
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
		return
	}

	filter := domain.QuoteFilter{
		CustomerID: query.CustomerID,
		Limit:      query.GetLimit() + 1,
		After:      after,
	}

	if query.Status != "" {
		filter.Status, err = domain.ParseQuoteStatus(query.Status)
		if err != nil {
			dto.HandleError(c, err)
			return
		}
	}

	quotes, err := h.service.List(c.Request.Context(), userID, filter)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	items := make([]*QuoteResponse, 0, len(quotes))
	for i := range quotes {
		items = append(items, toQuoteResponse(&quotes[i]))
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(items, query.GetLimit(), func(q *QuoteResponse) *dto.CursorData {
		return dto.NewQuoteCursor(q.CreatedAt, q.ID)
	}))
}

// Get handles GET /quotes/:id. A quote of another user is 403, an unknown id 404.
func (h *QuoteHandler) Get(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	quote, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

// Update handles PUT /quotes/:id.
func (h *QuoteHandler) Update(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req UpdateQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	update := app.QuoteUpdate{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		ProjectName:  req.ProjectName,
		ProjectType:  req.ProjectType,
		Description:  req.Description,
		PaymentTerms: req.PaymentTerms,
		ValidityDays: req.ValidityDays,
		ExpectedDays: req.ExpectedDays,
		Items:        toDrafts(req.Items),
	}

	if req.Status != nil {
		status, err := domain.ParseQuoteStatus(*req.Status)
		if err != nil {
			dto.HandleError(c, err)
			return
		}

		update.Status = &status
	}

	quote, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), update)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuoteResponse(quote))
}

// Delete handles DELETE /quotes/:id.
func (h *QuoteHandler) Delete(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the quote routes on rg.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.POST("", h.Create)
	quotes.GET("", h.List)
	quotes.GET("/:id", h.Get)
	quotes.PUT("/:id", h.Update)
	quotes.DELETE("/:id", h.Delete)
}
