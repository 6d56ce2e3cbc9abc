package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/domain"
)

// CustomerHandler handles customer CRUD.
type CustomerHandler struct {
	service *app.CustomerService
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(service *app.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: service}
}

// CustomerRequest is the body of POST /customers and PUT /customers/:id.
type CustomerRequest struct {
	Name        string `json:"name"        validate:"required,notempty,max=200"`
	Industry    string `json:"industry"    validate:"max=200"`
	Description string `json:"description"`
	AISummary   string `json:"aiSummary"`
	Email       string `json:"email"       validate:"omitempty,email"`
	Phone       string `json:"phone"       validate:"max=50"`
}

func (r CustomerRequest) toInput() app.CustomerInput {
	return app.CustomerInput{
		Name:        r.Name,
		Industry:    r.Industry,
		Description: r.Description,
		AISummary:   r.AISummary,
		Email:       r.Email,
		Phone:       r.Phone,
	}
}

// QuoteSummary is a quote as listed under its customer.
type QuoteSummary struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"projectName"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CustomerResponse is the HTTP representation of a customer.
// Quotes is only present on the detail view.
type CustomerResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Industry    string         `json:"industry"`
	Description string         `json:"description"`
	AISummary   string         `json:"aiSummary"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	QuoteCount  int            `json:"quoteCount"`
	Quotes      []QuoteSummary `json:"quotes,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func toCustomerResponse(c *domain.Customer) *CustomerResponse {
	resp := &CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Industry:    c.Industry,
		Description: c.Description,
		AISummary:   c.AISummary,
		Email:       c.Email,
		Phone:       c.Phone,
		QuoteCount:  c.QuoteCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}

	if c.Quotes != nil {
		resp.Quotes = make([]QuoteSummary, 0, len(c.Quotes))
		for _, q := range c.Quotes {
			resp.Quotes = append(resp.Quotes, QuoteSummary{
				ID:          q.ID,
				ProjectName: q.ProjectName,
				Status:      string(q.Status),
				TotalAmount: q.TotalAmount,
				CreatedAt:   q.CreatedAt,
			})
		}
	}

	return resp
}

// Create handles POST /customers.
func (h *CustomerHandler) Create(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req CustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.service.Create(c.Request.Context(), userID, req.toInput())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCustomerResponse(customer))
}

// List handles GET /customers.
func (h *CustomerHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	customers, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp := make([]*CustomerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerResponse(&customers[i]))
	}

	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// Get handles GET /customers/:id.
func (h *CustomerHandler) Get(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	customer, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

// Update handles PUT /customers/:id.
func (h *CustomerHandler) Update(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req CustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), req.toInput())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

// Delete handles DELETE /customers/:id. Quotes of the customer are kept and detached.
func (h *CustomerHandler) Delete(c *gin.Context) {
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

// RegisterRoutes registers the customer routes on rg.
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	customers.POST("", h.Create)
	customers.GET("", h.List)
	customers.GET("/:id", h.Get)
	customers.PUT("/:id", h.Update)
	customers.DELETE("/:id", h.Delete)
}
