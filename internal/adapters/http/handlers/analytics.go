package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/domain"
)

// AnalyticsHandler serves the read-only analytics endpoints and AI insight.
type AnalyticsHandler struct {
	service *app.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(service *app.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// TrendResponse is a month-over-month comparison.
type TrendResponse struct {
	Change int    `json:"change"`
	Trend  string `json:"trend"`
}

// MetricsResponse is the body of GET /analytics/metrics.
type MetricsResponse struct {
	Period        string                   `json:"period"`
	TotalQuoted   float64                  `json:"totalQuoted"`
	TotalWon      float64                  `json:"totalWon"`
	GrossProfit   float64                  `json:"grossProfit"`
	MarginRate    float64                  `json:"marginRate"`
	QuoteCount    int                      `json:"quoteCount"`
	WonCount      int                      `json:"wonCount"`
	LostCount     int                      `json:"lostCount"`
	WinRate       float64                  `json:"winRate"`
	ActiveClients int                      `json:"activeClients"`
	Trends        map[string]TrendResponse `json:"trends"`
}

// BucketResponse is one month of the projects series.
type BucketResponse struct {
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	Quoted float64   `json:"quoted"`
	Won    float64   `json:"won"`
	Count  int       `json:"count"`
}

// ProjectsQuery holds the parameters of GET /analytics/projects. Zero months selects the default window.
type ProjectsQuery struct {
	Months int `form:"months"`
}

// InsightRequest is the body of POST /analytics/insight.
type InsightRequest struct {
	Focus string `json:"focus" validate:"max=500"`
}

func toTrend(t domain.Trend) TrendResponse {
	return TrendResponse{Change: t.Change, Trend: string(t.Direction)}
}

// Metrics handles GET /analytics/metrics.
func (h *AnalyticsHandler) Metrics(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	report, err := h.service.Metrics(c.Request.Context(), userID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MetricsResponse{
		Period:        report.Period,
		TotalQuoted:   report.TotalQuoted,
		TotalWon:      report.TotalWon,
		GrossProfit:   report.GrossProfit,
		MarginRate:    report.MarginRate,
		QuoteCount:    report.QuoteCount,
		WonCount:      report.WonCount,
		LostCount:     report.LostCount,
		WinRate:       report.WinRate,
		ActiveClients: report.ActiveClients,
		Trends: map[string]TrendResponse{
			"quoted": toTrend(report.QuotedTrend),
			"won":    toTrend(report.WonTrend),
			"count":  toTrend(report.CountTrend),
		},
	})
}

// Projects handles GET /analytics/projects?months=N.
func (h *AnalyticsHandler) Projects(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var query ProjectsQuery
	if !bindQuery(c, &query) {
		return
	}

	buckets, err := h.service.Projects(c.Request.Context(), userID, query.Months)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	series := make([]BucketResponse, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, BucketResponse{Label: b.Label, Start: b.Start, Quoted: b.Quoted, Won: b.Won, Count: b.Count})
	}

	c.JSON(http.StatusOK, gin.H{"months": len(series), "series": series})
}

// Insight handles POST /analytics/insight. The body is optional.
func (h *AnalyticsHandler) Insight(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req InsightRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	text, err := h.service.Insight(c.Request.Context(), userID, req.Focus)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"insight": text})
}

// RegisterRoutes registers the analytics routes on rg.
func (h *AnalyticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	analytics := rg.Group("/analytics")
	analytics.GET("/metrics", h.Metrics)
	analytics.GET("/projects", h.Projects)
	analytics.POST("/insight", h.Insight)
}
