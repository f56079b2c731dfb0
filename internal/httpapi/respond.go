package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaderboard-backend/internal/vadererr"
)

// CommandResponse is the structured success payload of every mutation
// command.
type CommandResponse struct {
	Msg string    `json:"msg"`
	ID  uuid.UUID `json:"id,omitzero"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMsg(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, CommandResponse{Msg: msg})
}

func writeMsgID(w http.ResponseWriter, msg string, id uuid.UUID) {
	writeJSON(w, http.StatusOK, CommandResponse{Msg: msg, ID: id})
}

// writeError flattens the error sum type into a status class. Internal
// failures are logged with detail and redacted on the wire.
func writeError(log *zap.Logger, w http.ResponseWriter, err error) {
	status := vadererr.Status(err)
	if !vadererr.Public(err) {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, status, CommandResponse{Msg: "internal server error"})
		return
	}
	log.Debug("request declined", zap.Error(err))
	writeJSON(w, status, CommandResponse{Msg: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, CommandResponse{Msg: "bad json: " + err.Error()})
		return false
	}
	return true
}
