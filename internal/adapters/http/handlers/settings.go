package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/domain"
)

// SettingsHandler serves the caller's company settings and pricing defaults.
type SettingsHandler struct {
	service *app.SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(service *app.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// SettingsRequest is the body of PUT /settings. Omitted fields keep their stored value.
type SettingsRequest struct {
	CompanyName       *string        `json:"companyName"       validate:"omitempty,max=200"`
	TaxID             *string        `json:"taxId"             validate:"omitempty,max=50"`
	ContactEmail      *string        `json:"contactEmail"      validate:"omitempty,email"`
	CompanySealURL    *string        `json:"companySealUrl"    validate:"omitempty,url"`
	TargetMarginMin   *float64       `json:"targetMarginMin"   validate:"omitempty,gte=0,lte=100"`
	TargetMarginMax   *float64       `json:"targetMarginMax"   validate:"omitempty,gte=0,lte=100"`
	QuoteValidityDays *int           `json:"quoteValidityDays" validate:"omitempty,gte=1"`
	Values            map[string]any `json:"values"`
}

// SettingsResponse is the HTTP representation of settings.
type SettingsResponse struct {
	CompanyName       string         `json:"companyName"`
	TaxID             string         `json:"taxId"`
	ContactEmail      string         `json:"contactEmail"`
	CompanySealURL    string         `json:"companySealUrl"`
	TargetMarginMin   float64        `json:"targetMarginMin"`
	TargetMarginMax   float64        `json:"targetMarginMax"`
	QuoteValidityDays int            `json:"quoteValidityDays"`
	Values            map[string]any `json:"values"`
	UpdatedAt         *time.Time     `json:"updatedAt,omitempty"`
}

func toSettingsResponse(s *domain.Settings) *SettingsResponse {
	resp := &SettingsResponse{
		CompanyName:       s.CompanyName,
		TaxID:             s.TaxID,
		ContactEmail:      s.ContactEmail,
		CompanySealURL:    s.CompanySealURL,
		TargetMarginMin:   s.TargetMarginMin,
		TargetMarginMax:   s.TargetMarginMax,
		QuoteValidityDays: s.QuoteValidityDays,
		Values:            s.Values,
	}

	if resp.Values == nil {
		resp.Values = map[string]any{}
	}

	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = &s.UpdatedAt
	}

	return resp
}

// Get handles GET /settings. Callers without saved settings get the defaults.
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	settings, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// Save handles PUT /settings.
func (h *SettingsHandler) Save(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req SettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.service.Save(c.Request.Context(), userID, app.SettingsInput{
		CompanyName:       req.CompanyName,
		TaxID:             req.TaxID,
		ContactEmail:      req.ContactEmail,
		CompanySealURL:    req.CompanySealURL,
		TargetMarginMin:   req.TargetMarginMin,
		TargetMarginMax:   req.TargetMarginMax,
		QuoteValidityDays: req.QuoteValidityDays,
		Values:            req.Values,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// RegisterRoutes registers the settings routes on rg.
func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.Get)
	rg.PUT("/settings", h.Save)
}
