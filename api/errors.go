package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/matrix-org/policyrelay/metrics"
)

type errorBody struct {
	Errcode string `json:"errcode"`
	Error   string `json:"error"`
}

func httpError(w http.ResponseWriter, code int, errcode string, msg string) {
	b, err := json.Marshal(errorBody{Errcode: errcode, Error: msg})
	if err != nil {
		log.Println(err) // "should never happen"
		b = []byte(`{"errcode":"M_UNKNOWN","error":"Error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

type errorResponder struct {
	action string
	w      http.ResponseWriter
	r      *http.Request
}

func (e *errorResponder) text(httpCode int, errcode string, error string) {
	defer metrics.RecordHttpResponse(e.r.Method, e.action, httpCode)
	httpError(e.w, httpCode, errcode, error)
}

// err logs the cause and responds with a generic message. Causes may carry upstream detail which shouldn't reach the
// caller.
func (e *errorResponder) err(httpCode int, errcode string, err error) {
	e.errWithText(httpCode, errcode, err, "Error")
}

func (e *errorResponder) errWithText(httpCode int, errcode string, err error, text string) {
	log.Printf("%s error (%d/%s): %v", e.action, httpCode, errcode, err)
	e.text(httpCode, errcode, text)
}

func newErrorResponder(action string, w http.ResponseWriter, r *http.Request) *errorResponder {
	return &errorResponder{
		action: action,
		w:      w,
		r:      r,
	}
}
