package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"trade-journal/internal/journal"
	"trade-journal/internal/models"
	"trade-journal/internal/tradestore"

	"github.com/gin-gonic/gin"
)

// JournalHandler serves the trade journal API.
type JournalHandler struct {
	svc      *journal.Service
	maxBytes int64
}

func NewJournalHandler(svc *journal.Service, maxUploadBytes int64) *JournalHandler {
	return &JournalHandler{svc: svc, maxBytes: maxUploadBytes}
}

// Register mounts the journal routes on rg. Every route requires a user.
func (h *JournalHandler) Register(rg *gin.RouterGroup) {
	rg.Use(RequireUser())

	trades := rg.Group("/trades")
	{
		trades.GET("", h.listTrades)
		trades.POST("", h.createTrade)
		trades.DELETE("", h.deleteAllTrades)
		trades.POST("/import", h.importTrades)
		trades.POST("/recalculate-durations", h.recalculateDurations)
		trades.GET("/:id", h.getTrade)
		trades.PUT("/:id", h.updateTrade)
		trades.DELETE("/:id", h.deleteTrade)
	}

	dashboard := rg.Group("/dashboard")
	{
		dashboard.GET("/metrics", h.dashboard)
		dashboard.GET("/calendar/:year/:month", h.calendar)
		dashboard.GET("/tickers", h.tickers)
		dashboard.GET("/timing", h.timing)
	}

	reports := rg.Group("/reports/detailed")
	{
		reports.GET("/stats", h.detailed)
		reports.GET("/days-times", h.daysTimes)
		reports.GET("/price-volume", h.priceVolume)
	}

	tags := rg.Group("/tags")
	{
		tags.GET("", h.listTags)
		tags.POST("", h.createTag)
		tags.DELETE("/:id", h.deleteTag)
	}

	settings := rg.Group("/risk-settings")
	{
		settings.GET("", h.riskSettings)
		settings.PUT("", h.updateRiskSettings)
		settings.GET("/calculator", h.positionSize)
	}
}

// filter builds a trade filter from the query string.
func filter(c *gin.Context) (tradestore.Filter, error) {
	f := tradestore.Filter{
		UserID: userID(c),
		Ticker: c.Query("ticker"),
	}
	if side := c.Query("side"); side != "" {
		switch s := models.Side(side); s {
		case models.SideLong, models.SideShort:
			f.Side = s
		default:
			return f, fmt.Errorf("side must be long or short, got %q", side)
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.Start}, {"end_date", &f.End}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		d, err := time.Parse(models.DateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%s must be YYYY-MM-DD, got %q", p.name, v)
		}
		*p.dst = &d
	}
	var err error
	if f.Skip, err = queryInt(c, "skip", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit", tradestore.DefaultLimit); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}

func queryFloat(c *gin.Context, name string) (float64, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, v)
	}
	return f, nil
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid id %q", c.Param("id"))
		return 0, false
	}
	return uint(id), true
}

func (h *JournalHandler) listTrades(c *gin.Context) {
	f, err := filter(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	trades, err := h.svc.ListTrades(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *JournalHandler) getTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTrade(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *JournalHandler) createTrade(c *gin.Context) {
	var in journal.TradeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "%v", err)
		return
	}
	t, err := h.svc.CreateTrade(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *JournalHandler) updateTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in journal.TradeUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "%v", err)
		return
	}
	t, err := h.svc.UpdateTrade(c.Request.Context(), userID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *JournalHandler) deleteTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTrade(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *JournalHandler) deleteAllTrades(c *gin.Context) {
	if _, err := h.svc.DeleteAllTrades(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *JournalHandler) importTrades(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file provided")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	res, err := h.svc.Import(c.Request.Context(), userID(c), fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *JournalHandler) recalculateDurations(c *gin.Context) {
	n, err := h.svc.RecalculateDurations(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Recalculated %d trades", n), "updated": n})
}

// report runs a filtered report and writes its result.
func report(c *gin.Context, run func(f tradestore.Filter) (any, error)) {
	f, err := filter(c)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	out, err := run(f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *JournalHandler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.Dashboard(ctx, f) })
}

func (h *JournalHandler) detailed(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.Detailed(ctx, f) })
}

func (h *JournalHandler) daysTimes(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.DaysTimes(ctx, f) })
}

func (h *JournalHandler) priceVolume(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.PriceVolume(ctx, f) })
}

func (h *JournalHandler) timing(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.Timing(ctx, f) })
}

func (h *JournalHandler) tickers(c *gin.Context) {
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) {
		// number of tickers, not a page size
		limit, err := queryInt(c, "limit", 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", journal.ErrInvalidInput, err)
		}
		f.Limit = 0
		return h.svc.Tickers(ctx, f, limit)
	})
}

func (h *JournalHandler) calendar(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		badRequest(c, "invalid year %q", c.Param("year"))
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		badRequest(c, "invalid month %q", c.Param("month"))
		return
	}
	ctx := c.Request.Context()
	report(c, func(f tradestore.Filter) (any, error) { return h.svc.Calendar(ctx, f, year, time.Month(month)) })
}

func (h *JournalHandler) listTags(c *gin.Context) {
	tags, err := h.svc.ListTags(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *JournalHandler) createTag(c *gin.Context) {
	var in journal.TagInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "%v", err)
		return
	}
	tag, err := h.svc.CreateTag(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *JournalHandler) deleteTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTag(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *JournalHandler) riskSettings(c *gin.Context) {
	rs, err := h.svc.RiskSettings(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (h *JournalHandler) updateRiskSettings(c *gin.Context) {
	var in journal.RiskSettingsUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "%v", err)
		return
	}
	rs, err := h.svc.UpdateRiskSettings(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (h *JournalHandler) positionSize(c *gin.Context) {
	entry, err := queryFloat(c, "entry_price")
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	stop, err := queryFloat(c, "stop_price")
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	override, err := queryFloat(c, "risk_amount")
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	pos, err := h.svc.PositionSize(c.Request.Context(), userID(c), entry, stop, override)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}
