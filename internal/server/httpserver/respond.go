package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/api"
)

func respond(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	writeEnvelope(w, status, api.Envelope{Data: raw, Success: true})
}

func respondError(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeEnvelope(w, status, api.Envelope{Success: false, Message: message, Errors: fields})
}

func writeEnvelope(w http.ResponseWriter, status int, env api.Envelope) {
	env.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
