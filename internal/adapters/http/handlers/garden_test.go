package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/mocks"
)

func newGardenRouter(t *testing.T) (*gin.Engine, *mocks.MockCompletionClient) {
	t.Helper()

	client := mocks.NewMockCompletionClient(t)
	handler := NewGardenHandler(app.NewGardenService(app.GardenServiceConfig{Client: client}))

	router := gin.New()
	handler.RegisterGardenRoutes(router)

	return router, client
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestGardenHandler_Analyze(t *testing.T) {
	router, client := newGardenRouter(t)

	client.EXPECT().Complete(mock.Anything, mock.MatchedBy(func(req domain.CompletionRequest) bool {
		return req.User == "친구를 도왔다" && req.JSON
	})).Return(`{"points":{"kindness":7},"comment":"친절의 꽃이 피었습니다."}`, nil).Once()

	w := postJSON(router, "/analyze", `{"diaryText":"친구를 도왔다"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "친절의 꽃이 피었습니다.", resp.Comment)
	assert.Equal(t, 7, resp.Points["kindness"])
	assert.Len(t, resp.Points, len(domain.Virtues()))
}

func TestGardenHandler_Analyze_BadRequests(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode string
	}{
		{name: "missing diary text", body: `{}`, expectedCode: dto.ErrorCodeValidation},
		{name: "blank diary text", body: `{"diaryText":"   "}`, expectedCode: dto.ErrorCodeValidation},
		{name: "not json", body: `diary`, expectedCode: dto.ErrorCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newGardenRouter(t)

			w := postJSON(router, "/analyze", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.expectedCode, decodeError(t, w).Error.Code)
		})
	}
}

func TestGardenHandler_Analyze_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "upstream down",
			err:            domain.NewUnavailableError("openai", "connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   dto.ErrorCodeUnavailable,
		},
		{
			name:           "reply is not json",
			reply:          "용기 8점",
			expectedStatus: http.StatusBadGateway,
			expectedCode:   dto.ErrorCodeBadGateway,
		},
		{
			name:           "unexpected failure",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, client := newGardenRouter(t)
			client.EXPECT().Complete(mock.Anything, mock.Anything).Return(tt.reply, tt.err).Once()

			w := postJSON(router, "/analyze", `{"diaryText":"오늘의 일기"}`)

			assert.Equal(t, tt.expectedStatus, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "boom")
		})
	}
}

func TestGardenHandler_MonthlySummary(t *testing.T) {
	router, client := newGardenRouter(t)

	client.EXPECT().Complete(mock.Anything, mock.MatchedBy(func(req domain.CompletionRequest) bool {
		return strings.Contains(req.User, "[Date: 3월 2일]\n산책을 했다") &&
			strings.Contains(req.User, "[Date: Unknown Date]\n책을 읽었다")
	})).Return(`{"wisdom":[{"text":"책을 읽었다","date":""}]}`, nil).Once()

	w := postJSON(router, "/monthly-summary",
		`{"diaries":[{"date_str":"3월 2일","content":"산책을 했다"},{"content":"책을 읽었다"}]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.MonthlySummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, len(domain.Virtues()))
	assert.Equal(t, []dto.RetroQuote{{Text: "책을 읽었다"}}, resp["wisdom"])
	assert.Empty(t, resp["courage"])
	assert.NotNil(t, resp["courage"])
}

func TestGardenHandler_MonthlySummary_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "upstream down",
			err:            domain.NewUnavailableError("openai", "circuit open"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   dto.ErrorCodeUnavailable,
		},
		{
			name:           "reply is not json",
			reply:          "지혜: 책을 읽었다",
			expectedStatus: http.StatusBadGateway,
			expectedCode:   dto.ErrorCodeBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, client := newGardenRouter(t)
			client.EXPECT().Complete(mock.Anything, mock.Anything).Return(tt.reply, tt.err).Once()

			w := postJSON(router, "/monthly-summary", `{"diaries":[{"date_str":"3월 2일","content":"책을 읽었다"}]}`)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, decodeError(t, w).Error.Code)
		})
	}
}

func TestGardenHandler_MonthlySummary_EmptyDiaries(t *testing.T) {
	router, _ := newGardenRouter(t)

	w := postJSON(router, "/monthly-summary", `{"diaries":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, dto.ErrorCodeValidation, resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "diaries")
}

func TestGardenHandler_RegisterGardenRoutes(t *testing.T) {
	router, _ := newGardenRouter(t)

	routes := make(map[string]bool)
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	assert.True(t, routes["POST /analyze"])
	assert.True(t, routes["POST /monthly-summary"])
}
