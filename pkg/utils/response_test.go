package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performResponse(t *testing.T, send func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	send(c)

	var body Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return recorder, body
}

func TestSendSuccess(t *testing.T) {
	recorder, body := performResponse(t, func(c *gin.Context) {
		SendSuccess(c, gin.H{"value": 42})
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	require.NotNil(t, body.Data)
}

func TestSendValidationError(t *testing.T) {
	recorder, body := performResponse(t, func(c *gin.Context) {
		SendValidationError(c, "bad request", "samples must be positive")
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeValidation, body.Error.Code)
	assert.Equal(t, "samples must be positive", body.Error.Details)
}

func TestSendNotFound(t *testing.T) {
	recorder, body := performResponse(t, func(c *gin.Context) {
		SendNotFound(c, "no such hole")
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeNotFound, body.Error.Code)
}

func TestSendUpstreamError(t *testing.T) {
	recorder, body := performResponse(t, func(c *gin.Context) {
		SendUpstreamError(c, "course service unavailable")
	})
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeUpstream, body.Error.Code)
}

func TestAppErrorString(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: missing", NewAppError(ErrCodeNotFound, "missing").Error())
	assert.Equal(t, "VALIDATION_ERROR: bad - detail", NewAppError(ErrCodeValidation, "bad", "detail").Error())
}
