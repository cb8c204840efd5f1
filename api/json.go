package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/matrix-org/policyrelay/metrics"
)

// Request bodies are small: a single message or a bounded transcript.
const maxBodyBytes = 1024 * 1024

func parseJsonBody(val any, r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(b) > maxBodyBytes {
		return errors.New("request body too large")
	}
	return json.Unmarshal(b, val)
}

func respondJson(action string, r *http.Request, w http.ResponseWriter, val any) error {
	return respondJsonWithStatus(action, r, w, http.StatusOK, val)
}

func respondJsonWithStatus(action string, r *http.Request, w http.ResponseWriter, status int, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	defer metrics.RecordHttpResponse(r.Method, action, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
	return nil
}
