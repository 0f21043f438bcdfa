package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
	"github.com/geulsup/garden-gateway/internal/app"
)

// DailyQuoteHandler serves the greeting shown when the garden opens.
type DailyQuoteHandler struct {
	cache *app.DailyQuoteCache
}

// NewDailyQuoteHandler creates a new daily quote handler.
func NewDailyQuoteHandler(cache *app.DailyQuoteCache) *DailyQuoteHandler {
	return &DailyQuoteHandler{cache: cache}
}

// GetDailyQuote handles GET /api/daily-quote.
// It always answers 200: when generation fails the last good quotes, or the
// fallback greeting, are served instead.
//
// @Summary Get today's quote
// @Tags garden
// @Produce json
// @Success 200 {object} dto.DailyQuoteResponse
// @Router /api/daily-quote [get]
func (h *DailyQuoteHandler) GetDailyQuote(c *gin.Context) {
	c.JSON(http.StatusOK, dto.DailyQuoteResponse{Quote: h.cache.Quote(c.Request.Context())})
}

// RegisterDailyQuoteRoutes registers the daily quote route.
func (h *DailyQuoteHandler) RegisterDailyQuoteRoutes(rg gin.IRoutes) {
	rg.GET("/api/daily-quote", h.GetDailyQuote)
}

// Banner is the plain-text body of GET /.
const Banner = "🌿 글숲 정원 관리 서버 가동 중"

// Root handles GET / so a browser hitting the host sees the server is up.
func Root(c *gin.Context) {
	c.String(http.StatusOK, Banner)
}
