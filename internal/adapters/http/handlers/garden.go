package handlers

import (
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

// GardenHandler serves the diary analysis endpoints.
type GardenHandler struct {
	service *app.GardenService
}

// NewGardenHandler creates a new garden handler.
func NewGardenHandler(service *app.GardenService) *GardenHandler {
	return &GardenHandler{service: service}
}

// Analyze handles POST /analyze.
// Scores one diary against the five virtues and returns a short comment.
//
// @Summary Analyze a diary entry
// @Description A model reply that is not the expected JSON is 502 BAD_GATEWAY and an
// @Description unreachable model is 503 UNAVAILABLE. Neither is reported as a plain 500.
// @Tags garden
// @Accept json
// @Produce json
// @Param request body dto.AnalyzeRequest true "Diary text"
// @Success 200 {object} dto.AnalyzeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse "Model reply was not usable"
// @Failure 503 {object} dto.ErrorResponse "Model unreachable or circuit open"
// @Router /analyze [post]
func (h *GardenHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	logging.FromContext(ctx).DebugContext(ctx, "analyzing diary",
		slog.Int("diary_runes", utf8.RuneCountInString(req.DiaryText)),
	)

	analysis, err := h.service.AnalyzeDiary(ctx, req.DiaryText)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAnalyzeResponse(analysis))
}

// MonthlySummary handles POST /monthly-summary.
// Picks memorable diary sentences per virtue for the monthly retrospective.
//
// @Summary Summarize a month of diaries
// @Description A model reply that is not the expected JSON is 502 BAD_GATEWAY and an
// @Description unreachable model is 503 UNAVAILABLE. Neither is reported as a plain 500.
// @Tags garden
// @Accept json
// @Produce json
// @Param request body dto.MonthlySummaryRequest true "Dated diaries"
// @Success 200 {object} dto.MonthlySummaryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse "Model reply was not usable"
// @Failure 503 {object} dto.ErrorResponse "Model unreachable or circuit open"
// @Router /monthly-summary [post]
func (h *GardenHandler) MonthlySummary(c *gin.Context) {
	var req dto.MonthlySummaryRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	summary, err := h.service.SummarizeMonth(c.Request.Context(), req.Entries())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMonthlySummaryResponse(summary))
}

// RegisterGardenRoutes registers the diary routes.
func (h *GardenHandler) RegisterGardenRoutes(rg gin.IRoutes) {
	rg.POST("/analyze", h.Analyze)
	rg.POST("/monthly-summary", h.MonthlySummary)
}
