package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/bank-reconciliation/internal/api/service"
	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
)

// MockReconciliationService is shared across package test files - defined in
// reconciliation_handler_test.go

func TestMatchHandler_Create(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		line := handlerTestLine()
		line.Status = bankfeed.StatusMatched
		line.MatchedAmount = decimal.RequireFromString("1000.00")
		recordID := uuid.New()
		created := &match.Match{
			ID:            uuid.New(),
			LineID:        line.ID,
			RecordType:    record.TypeInvoice,
			RecordID:      recordID,
			MatchedAmount: decimal.RequireFromString("1000.00"),
			MatchedBy:     "alice",
			MatchedAt:     time.Now().UTC(),
			Method:        match.MethodManual,
		}

		mockService.On("CreateMatch", mock.Anything, line.ID, mock.MatchedBy(func(input match.CreateInput) bool {
			return input.RecordType == record.TypeInvoice &&
				input.RecordID == recordID &&
				input.MatchedAmount.Equal(decimal.RequireFromString("1000.00")) &&
				input.MatchedBy == "alice"
		})).Return(created, line, nil)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      recordID.String(),
			MatchedAmount: "1000.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+line.ID.String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))
		require.NotNil(t, topLevelResponse.Data)

		var responseBody MatchCreatedResponse
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, created.ID.String(), responseBody.Match.ID)
		assert.Equal(t, line.ID.String(), responseBody.Match.LineID)
		assert.Equal(t, "INVOICE", responseBody.Match.RecordType)
		assert.Equal(t, "MANUAL", responseBody.Match.Method)
		assert.Equal(t, string(bankfeed.StatusMatched), responseBody.Line.Status)

		mockService.AssertExpectations(t)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+uuid.New().String()+"/matches", bytes.NewBufferString(`{"record_type`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRecordType", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "PAYSLIP",
			RecordID:      uuid.New().String(),
			MatchedAmount: "100.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+uuid.New().String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidAmountFormat", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      uuid.New().String(),
			MatchedAmount: "one hundred",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+uuid.New().String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("CurrencyMismatch", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		mockService.On("CreateMatch", mock.Anything, lineID, mock.Anything).
			Return(nil, nil, service.ErrCurrencyMismatch)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      uuid.New().String(),
			MatchedAmount: "100.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+lineID.String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var response Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.NotNil(t, response.Error)
		assert.Equal(t, "UNPROCESSABLE_ENTITY", response.Error.Code)

		mockService.AssertExpectations(t)
	})

	t.Run("AmountConservationViolated", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		mockService.On("CreateMatch", mock.Anything, lineID, mock.Anything).
			Return(nil, nil, bankfeed.ErrAmountConservation)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      uuid.New().String(),
			MatchedAmount: "5000.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+lineID.String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("LineFullyMatched", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		mockService.On("CreateMatch", mock.Anything, lineID, mock.Anything).
			Return(nil, nil, bankfeed.ErrLineFullyMatched)

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      uuid.New().String(),
			MatchedAmount: "100.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+lineID.String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("RecordNotFound", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		recordID := uuid.New()
		mockService.On("CreateMatch", mock.Anything, lineID, mock.Anything).
			Return(nil, nil, record.ErrRecordNotFound{RecordID: recordID})

		router := setupTestRouter()
		router.POST("/bank-lines/:id/matches", handler.Create)

		reqBody := CreateMatchRequest{
			RecordType:    "INVOICE",
			RecordID:      recordID.String(),
			MatchedAmount: "100.00",
			MatchedBy:     "alice",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/bank-lines/"+lineID.String()+"/matches", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestMatchHandler_Delete(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		line := handlerTestLine()
		matchID := uuid.New()
		mockService.On("RemoveMatch", mock.Anything, line.ID, matchID, "alice").Return(line, nil)

		router := setupTestRouter()
		router.DELETE("/bank-lines/:id/matches/:matchId", handler.Delete)

		url := "/bank-lines/" + line.ID.String() + "/matches/" + matchID.String() + "?actor=alice"
		req, _ := http.NewRequest(http.MethodDelete, url, nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))

		var responseBody LineResponse
		dataBytes, _ := json.Marshal(topLevelResponse.Data)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))
		assert.Equal(t, line.ID.String(), responseBody.ID)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidMatchID", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		router := setupTestRouter()
		router.DELETE("/bank-lines/:id/matches/:matchId", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/bank-lines/"+uuid.New().String()+"/matches/not-a-uuid", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MatchNotFound", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		matchID := uuid.New()
		mockService.On("RemoveMatch", mock.Anything, lineID, matchID, "").
			Return(nil, match.ErrMatchNotFound{MatchID: matchID})

		router := setupTestRouter()
		router.DELETE("/bank-lines/:id/matches/:matchId", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/bank-lines/"+lineID.String()+"/matches/"+matchID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ConcurrentModification", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		matchID := uuid.New()
		mockService.On("RemoveMatch", mock.Anything, lineID, matchID, "").
			Return(nil, bankfeed.ErrConcurrentModification{LineID: lineID})

		router := setupTestRouter()
		router.DELETE("/bank-lines/:id/matches/:matchId", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/bank-lines/"+lineID.String()+"/matches/"+matchID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestMatchHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		matches := []*match.Match{
			{
				ID:            uuid.New(),
				LineID:        lineID,
				RecordType:    record.TypeInvoice,
				RecordID:      uuid.New(),
				MatchedAmount: decimal.RequireFromString("600.00"),
				MatchedBy:     "alice",
				MatchedAt:     time.Now().UTC(),
				Method:        match.MethodManual,
			},
			{
				ID:            uuid.New(),
				LineID:        lineID,
				RecordType:    record.TypeReceipt,
				RecordID:      uuid.New(),
				MatchedAmount: decimal.RequireFromString("400.00"),
				MatchedBy:     "auto-matcher",
				MatchedAt:     time.Now().UTC(),
				Method:        match.MethodAuto,
			},
		}
		mockService.On("ListMatches", mock.Anything, lineID).Return(matches, nil)

		router := setupTestRouter()
		router.GET("/bank-lines/:id/matches", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/bank-lines/"+lineID.String()+"/matches", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))

		var responseBody []MatchResponse
		dataBytes, _ := json.Marshal(topLevelResponse.Data)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		require.Len(t, responseBody, 2)
		assert.Equal(t, "MANUAL", responseBody[0].Method)
		assert.Equal(t, "AUTO", responseBody[1].Method)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/bank-lines/:id/matches", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/bank-lines/not-a-uuid/matches", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		handler := NewMatchHandler(logger, mockService)

		lineID := uuid.New()
		mockService.On("ListMatches", mock.Anything, lineID).Return(nil, errors.New("database connection lost"))

		router := setupTestRouter()
		router.GET("/bank-lines/:id/matches", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/bank-lines/"+lineID.String()+"/matches", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}
