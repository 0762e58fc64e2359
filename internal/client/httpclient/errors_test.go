package httpclient

import (
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want error
	}{
		{"unauthorized", &APIError{StatusCode: http.StatusUnauthorized}, common.ErrUnauthorized},
		{"unprocessable", &APIError{StatusCode: http.StatusUnprocessableEntity}, common.ErrValidation},
		{"bad request with fields", &APIError{StatusCode: http.StatusBadRequest, Fields: map[string][]string{"a": {"b"}}}, common.ErrValidation},
		{"not found", &APIError{StatusCode: http.StatusNotFound}, common.ErrNotFound},
		{"server error", &APIError{StatusCode: http.StatusServiceUnavailable}, common.ErrNetwork},
		{"timeout", &APIError{StatusCode: http.StatusRequestTimeout}, common.ErrNetwork},
		{"rate limited", &APIError{StatusCode: http.StatusTooManyRequests}, common.ErrNetwork},
		{"plain bad request", &APIError{StatusCode: http.StatusBadRequest}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Unwrap())
			if tt.want != nil {
				assert.True(t, errors.Is(tt.err, tt.want))
			}
		})
	}
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "api error 404: Not Found", (&APIError{StatusCode: 404}).Error())
	assert.Equal(t, "api error 409: taken", (&APIError{StatusCode: 409, Message: "taken"}).Error())
}
