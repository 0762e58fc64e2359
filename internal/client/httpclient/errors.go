package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/common"
)

// APIError is the normalized shape of a non-successful backend response.
// It unwraps to the sentinel in internal/common matching its status, so
// callers can test it with errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error %d: %s %v", e.StatusCode, msg, e.Fields)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case e.StatusCode == http.StatusUnprocessableEntity:
		return common.ErrValidation
	case len(e.Fields) > 0:
		return common.ErrValidation
	case e.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case isTransientStatus(e.StatusCode):
		return common.ErrNetwork
	}
	return nil
}

// newAPIError reads message and field errors from an envelope body when the
// backend sent one.
func newAPIError(resp *Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	var env api.Envelope
	if err := json.Unmarshal(resp.Body, &env); err == nil {
		e.Message = env.Message
		e.Fields = env.Errors
	}
	return e
}

func isTransientStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests
}
