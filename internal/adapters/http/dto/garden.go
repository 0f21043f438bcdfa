package dto

import (
	"github.com/geulsup/garden-gateway/internal/domain"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	DiaryText string `json:"diaryText" validate:"required,notempty"`
}

// AnalyzeResponse mirrors domain.DiaryAnalysis on the wire.
type AnalyzeResponse struct {
	Points  map[string]int `json:"points"`
	Comment string         `json:"comment"`
}

// NewAnalyzeResponse converts an analysis into its wire form.
func NewAnalyzeResponse(a *domain.DiaryAnalysis) AnalyzeResponse {
	points := make(map[string]int, len(a.Points))
	for v, n := range a.Points {
		points[string(v)] = n
	}

	return AnalyzeResponse{Points: points, Comment: a.Comment}
}

// DiaryEntry is one dated diary in a monthly summary request.
type DiaryEntry struct {
	DateStr string `json:"date_str"`
	Content string `json:"content"`
}

// MonthlySummaryRequest is the body of POST /monthly-summary.
type MonthlySummaryRequest struct {
	Diaries []DiaryEntry `json:"diaries" validate:"required,min=1"`
}

// Entries converts the request into domain diary entries.
func (r *MonthlySummaryRequest) Entries() []domain.DiaryEntry {
	out := make([]domain.DiaryEntry, len(r.Diaries))
	for i, d := range r.Diaries {
		out[i] = domain.DiaryEntry{DateLabel: d.DateStr, Content: d.Content}
	}

	return out
}

// RetroQuote is one quote with the date of the diary it came from.
type RetroQuote struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// MonthlySummaryResponse maps each virtue to its quotes. Every virtue is
// present, with an empty list when the month had nothing for it.
type MonthlySummaryResponse map[string][]RetroQuote

// NewMonthlySummaryResponse converts a summary into its wire form.
func NewMonthlySummaryResponse(s domain.MonthlySummary) MonthlySummaryResponse {
	out := make(MonthlySummaryResponse, len(domain.Virtues()))
	for _, v := range domain.Virtues() {
		quotes := make([]RetroQuote, 0, len(s[v]))
		for _, q := range s[v] {
			quotes = append(quotes, RetroQuote{Text: q.Text, Date: q.Date})
		}

		out[string(v)] = quotes
	}

	return out
}

// DailyQuoteResponse is the body of GET /api/daily-quote.
type DailyQuoteResponse struct {
	Quote string `json:"quote"`
}
