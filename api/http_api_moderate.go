package api

import (
	"net/http"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/queue"
)

// Stateless runs carry their history in the request, so bound it.
const maxTranscriptMessages = 200

func httpModerateApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpModerateApi")
	t := metrics.StartRequestTimer(r.Method, "httpModerateApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpModerateApi", w, r)

	if r.Method != http.MethodPost {
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
		return
	}

	req := struct {
		Messages []chat.Message `json:"messages"`
	}{}
	err := parseJsonBody(&req, r.Body)
	if err != nil {
		errs.err(http.StatusBadRequest, "M_BAD_JSON", err)
		return
	}
	if len(req.Messages) == 0 {
		errs.text(http.StatusBadRequest, "M_INVALID_PARAM", moderation.ErrEmptyTranscript.Error())
		return
	}
	if len(req.Messages) > maxTranscriptMessages {
		errs.text(http.StatusBadRequest, "M_INVALID_PARAM", "too many messages")
		return
	}
	if err = chat.Validate(req.Messages); err != nil {
		errs.errWithText(http.StatusBadRequest, "M_INVALID_PARAM", err, chat.ErrInvalidRole.Error())
		return
	}
	if last, _ := chat.Last(req.Messages); last.Role != chat.RoleUser {
		errs.text(http.StatusBadRequest, "M_INVALID_PARAM", moderation.ErrNotUserTurn.Error())
		return
	}

	res := awaitRun(errs, func(ch chan<- *queue.PoolResult) error {
		return api.pool.SubmitTranscript(r.Context(), req.Messages, ch)
	})
	if res == nil {
		return // error already sent
	}

	err = respondJson("httpModerateApi", r, w, newResultResponse(res))
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}
}
