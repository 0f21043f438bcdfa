// Package app contains application services that orchestrate use cases.
// It coordinates domain types and the completion upstream through ports;
// HTTP concerns stay in the adapters.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
	"github.com/geulsup/garden-gateway/internal/ports"
)

const (
	operationAnalyze = "analyze"
	operationMonthly = "monthly_summary"

	// DefaultMaxInputRunes caps the monthly diary text sent upstream.
	DefaultMaxInputRunes = 25000

	// DefaultQuotesPerVirtue caps the monthly quotes kept per virtue.
	DefaultQuotesPerVirtue = 2

	// DefaultAnalysisTemperature is the sampling temperature for diary analysis.
	DefaultAnalysisTemperature float32 = 0.8

	// DefaultSummaryTemperature is the sampling temperature for monthly summaries.
	DefaultSummaryTemperature float32 = 0.7

	unknownDateLabel = "Unknown Date"
	diarySeparator   = "\n\n=================\n\n"
)

// GardenServiceConfig contains the dependencies of the garden service.
type GardenServiceConfig struct {
	Client ports.CompletionClient

	AnalysisTemperature float32
	SummaryTemperature  float32
	MaxInputRunes       int
	QuotesPerVirtue     int
}

// GardenService turns diaries into garden growth data.
type GardenService struct {
	client ports.CompletionClient

	analysisTemperature float32
	summaryTemperature  float32
	maxInputRunes       int
	quotesPerVirtue     int
}

// NewGardenService creates a garden service, filling unset limits with defaults.
func NewGardenService(cfg GardenServiceConfig) *GardenService {
	s := &GardenService{
		client:              cfg.Client,
		analysisTemperature: cfg.AnalysisTemperature,
		summaryTemperature:  cfg.SummaryTemperature,
		maxInputRunes:       cfg.MaxInputRunes,
		quotesPerVirtue:     cfg.QuotesPerVirtue,
	}

	if s.analysisTemperature <= 0 {
		s.analysisTemperature = DefaultAnalysisTemperature
	}

	if s.summaryTemperature <= 0 {
		s.summaryTemperature = DefaultSummaryTemperature
	}

	if s.maxInputRunes <= 0 {
		s.maxInputRunes = DefaultMaxInputRunes
	}

	if s.quotesPerVirtue <= 0 {
		s.quotesPerVirtue = DefaultQuotesPerVirtue
	}

	return s
}

// rawAnalysis is the reply shape requested by analysisPrompt.
type rawAnalysis struct {
	Points  map[string]float64 `json:"points"`
	Comment string             `json:"comment"`
}

// AnalyzeDiary scores one diary entry.
func (s *GardenService) AnalyzeDiary(ctx context.Context, diaryText string) (*domain.DiaryAnalysis, error) {
	if strings.TrimSpace(diaryText) == "" {
		return nil, domain.NewValidationError("diaryText", "diary text is empty")
	}

	logging.FromContext(ctx).InfoContext(ctx, "analyzing diary", slog.Int("runes", utf8.RuneCountInString(diaryText)))

	return Run(ctx, Pipeline[string, *domain.DiaryAnalysis]{
		Name: operationAnalyze,
		Perform: func(ctx context.Context) (string, error) {
			return s.client.Complete(ctx, domain.CompletionRequest{
				Operation:   operationAnalyze,
				System:      analysisPrompt,
				User:        diaryText,
				Temperature: s.analysisTemperature,
				JSON:        true,
			})
		},
		Verify: func(_ context.Context, raw string) (*domain.DiaryAnalysis, error) {
			return decodeAnalysis(raw)
		},
	})
}

func decodeAnalysis(raw string) (*domain.DiaryAnalysis, error) {
	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, domain.NewMalformedOutputError(operationAnalyze, err.Error())
	}

	comment := strings.TrimSpace(parsed.Comment)
	if comment == "" {
		return nil, domain.NewMalformedOutputError(operationAnalyze, "missing comment")
	}

	points := make(domain.VirtuePoints, len(domain.Virtues()))
	for _, v := range domain.Virtues() {
		points[v] = 0
	}

	for key, value := range parsed.Points {
		v := domain.Virtue(strings.ToLower(strings.TrimSpace(key)))
		if _, known := points[v]; !known {
			continue
		}

		points[v] = max(0, int(math.Round(value)))
	}

	return &domain.DiaryAnalysis{Points: points, Comment: comment}, nil
}

// rawQuote is one element of a virtue array in the monthly reply.
type rawQuote struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// SummarizeMonth selects diary quotes per virtue for a monthly retrospective.
func (s *GardenService) SummarizeMonth(ctx context.Context, diaries []domain.DiaryEntry) (domain.MonthlySummary, error) {
	if len(diaries) == 0 {
		return nil, domain.NewValidationError("diaries", "no diaries to summarize")
	}

	text := truncateRunes(FormatDiaries(diaries), s.maxInputRunes)

	logging.FromContext(ctx).InfoContext(ctx, "summarizing month",
		slog.Int("diaries", len(diaries)),
	)

	return Run(ctx, Pipeline[string, domain.MonthlySummary]{
		Name: operationMonthly,
		Perform: func(ctx context.Context) (string, error) {
			return s.client.Complete(ctx, domain.CompletionRequest{
				Operation:   operationMonthly,
				System:      monthlyPrompt,
				User:        monthlyUserPrefix + text,
				Temperature: s.summaryTemperature,
				JSON:        true,
			})
		},
		Verify: func(_ context.Context, raw string) (domain.MonthlySummary, error) {
			return decodeMonthly(raw, s.quotesPerVirtue)
		},
	})
}

// FormatDiaries renders entries as "[Date: label]\ncontent" blocks.
func FormatDiaries(diaries []domain.DiaryEntry) string {
	blocks := make([]string, 0, len(diaries))

	for _, d := range diaries {
		label := d.DateLabel
		if label == "" {
			label = unknownDateLabel
		}

		blocks = append(blocks, "[Date: "+label+"]\n"+d.Content)
	}

	return strings.Join(blocks, diarySeparator)
}

func decodeMonthly(raw string, perVirtue int) (domain.MonthlySummary, error) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, domain.NewMalformedOutputError(operationMonthly, err.Error())
	}

	byVirtue := make(map[domain.Virtue]json.RawMessage, len(parsed))
	for key, value := range parsed {
		byVirtue[domain.Virtue(strings.ToLower(strings.TrimSpace(key)))] = value
	}

	summary := make(domain.MonthlySummary, len(domain.Virtues()))

	for _, v := range domain.Virtues() {
		quotes := make([]domain.RetroQuote, 0, perVirtue)

		if msg, ok := byVirtue[v]; ok && string(msg) != "null" {
			var items []rawQuote
			if err := json.Unmarshal(msg, &items); err != nil {
				return nil, domain.NewMalformedOutputError(operationMonthly,
					fmt.Sprintf("virtue %s: %v", v, err))
			}

			for _, item := range items {
				if len(quotes) == perVirtue {
					break
				}

				text := strings.TrimSpace(item.Text)
				if text == "" {
					continue
				}

				quotes = append(quotes, domain.RetroQuote{Text: text, Date: strings.TrimSpace(item.Date)})
			}
		}

		summary[v] = quotes
	}

	return summary, nil
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}

	return s
}

// stripCodeFence removes a surrounding ``` fence some models add even in
// JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
