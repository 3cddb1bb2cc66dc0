package server

import (
	"fmt"
	"math"
	"net/http"

	"trade-journal/internal/analytics"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the market analytics API.
type AnalyticsHandler struct {
	svc *analytics.Service
}

func NewAnalyticsHandler(svc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func (h *AnalyticsHandler) Register(rg *gin.RouterGroup) {
	tickers := rg.Group("/tickers")
	{
		tickers.GET("", h.listTickers)
		tickers.GET("/:ticker", h.tickerInfo)
		tickers.GET("/:ticker/quotes", h.quotes)
		tickers.GET("/:ticker/intraday/:date", h.intraday)
	}
	gaps := rg.Group("/gaps")
	{
		gaps.GET("/:ticker", h.gapHistory)
		gaps.GET("/:ticker/stats", h.gapStatistics)
	}
}

type tickerURI struct {
	Ticker string `uri:"ticker" binding:"required,ticker"`
}

func bindTicker(c *gin.Context) (string, bool) {
	var uri tickerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, "invalid ticker %q", c.Param("ticker"))
		return "", false
	}
	return uri.Ticker, true
}

func (h *AnalyticsHandler) listTickers(c *gin.Context) {
	limit, err := queryInt(c, "limit", analytics.DefaultTickerLimit)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	out, err := h.svc.Tickers(c.Request.Context(), c.Query("search"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) tickerInfo(c *gin.Context) {
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}
	out, err := h.svc.TickerInfo(c.Request.Context(), ticker)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) quotes(c *gin.Context) {
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", analytics.DefaultQuoteLimit)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	out, err := h.svc.Quotes(c.Request.Context(), ticker, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) intraday(c *gin.Context) {
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}
	out, err := h.svc.IntradayBars(c.Request.Context(), ticker, c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func minGap(c *gin.Context) (float64, error) {
	v, err := queryFloat(c, "min_gap")
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("min_gap must be a finite number")
	}
	if v < 0 {
		return 0, fmt.Errorf("min_gap must not be negative")
	}
	return v, nil
}

func (h *AnalyticsHandler) gapHistory(c *gin.Context) {
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}
	threshold, err := minGap(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	limit, err := queryInt(c, "limit", analytics.DefaultGapLimit)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	out, err := h.svc.GapHistory(c.Request.Context(), ticker, threshold, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AnalyticsHandler) gapStatistics(c *gin.Context) {
	ticker, ok := bindTicker(c)
	if !ok {
		return
	}
	threshold, err := minGap(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	out, err := h.svc.GapStatistics(c.Request.Context(), ticker, threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
