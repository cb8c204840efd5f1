package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/storage"
)

const maxIdempotencyKeyLength = 255

type auditRecordResponse struct {
	RunId           string   `json:"run_id"`
	TriggeringRole  string   `json:"triggering_role"`
	CategoryCodes   []string `json:"category_codes"`
	Unrecognized    bool     `json:"unrecognized"`
	CreatedAtMillis int64    `json:"created_ts"`
}

func httpCreateSessionApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpCreateSessionApi")
	t := metrics.StartRequestTimer(r.Method, "httpCreateSessionApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpCreateSessionApi", w, r)

	if r.Method != http.MethodPost {
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
		return
	}

	sess := api.sessions.Create()
	err := respondJson("httpCreateSessionApi", r, w, map[string]any{
		"session_id": sess.Id,
	})
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}
}

// httpSessionApi serves both reading and ending a session.
func httpSessionApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpSessionApi")
	t := metrics.StartRequestTimer(r.Method, "httpSessionApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpSessionApi", w, r)

	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		history, err := api.sessions.History(r.Context(), id)
		if errors.Is(err, session.ErrNotFound) {
			errs.text(http.StatusNotFound, "M_NOT_FOUND", "Session not found")
			return
		}
		if err != nil {
			errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
			return
		}
		err = respondJson("httpSessionApi", r, w, map[string]any{
			"session_id": id,
			"messages":   history,
		})
		if err != nil {
			errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
			return
		}
	case http.MethodDelete:
		api.sessions.Delete(id)
		err := respondJson("httpSessionApi", r, w, map[string]any{})
		if err != nil {
			errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
			return
		}
	default:
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
	}
}

func httpSendSessionMessageApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpSendSessionMessageApi")
	t := metrics.StartRequestTimer(r.Method, "httpSendSessionMessageApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpSendSessionMessageApi", w, r)

	if r.Method != http.MethodPost {
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
		return
	}

	req := struct {
		Content        string `json:"content"`
		IdempotencyKey string `json:"idempotency_key"`
	}{}
	err := parseJsonBody(&req, r.Body)
	if err != nil {
		errs.err(http.StatusBadRequest, "M_BAD_JSON", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		errs.text(http.StatusBadRequest, "M_INVALID_PARAM", "content is required")
		return
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		errs.text(http.StatusBadRequest, "M_INVALID_PARAM", "idempotency_key is too long")
		return
	}

	id := r.PathValue("id")
	res := awaitRun(errs, func(ch chan<- *queue.PoolResult) error {
		return api.pool.SubmitSessionMessage(r.Context(), id, req.Content, req.IdempotencyKey, ch)
	})
	if res == nil {
		return // error already sent
	}

	err = respondJson("httpSendSessionMessageApi", r, w, newResultResponse(res))
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}
}

func httpGetSessionAuditApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpGetSessionAuditApi")
	t := metrics.StartRequestTimer(r.Method, "httpGetSessionAuditApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpGetSessionAuditApi", w, r)

	if r.Method != http.MethodGet {
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
		return
	}
	if api.storage == nil {
		errs.text(http.StatusNotFound, "M_NOT_FOUND", "Audit records are not persisted")
		return
	}

	records, err := api.storage.GetAuditRecordsForSession(r.Context(), r.PathValue("id"))
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}

	err = respondJson("httpGetSessionAuditApi", r, w, map[string]any{
		"records": toAuditRecordResponses(records),
	})
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}
}

func toAuditRecordResponses(records []*storage.StoredAuditRecord) []*auditRecordResponse {
	resp := make([]*auditRecordResponse, 0, len(records))
	for _, record := range records {
		codes := record.CategoryCodes
		if codes == nil {
			codes = make([]string, 0)
		}
		resp = append(resp, &auditRecordResponse{
			RunId:           record.RunId,
			TriggeringRole:  record.TriggeringRole,
			CategoryCodes:   codes,
			Unrecognized:    record.Unrecognized,
			CreatedAtMillis: record.CreatedAtMillis,
		})
	}
	return resp
}
