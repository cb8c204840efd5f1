package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/internal"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
)

type resultResponse struct {
	RunId          string             `json:"run_id"`
	Outcome        moderation.Outcome `json:"outcome"`
	Message        chat.Message       `json:"message"`
	TriggeringRole *chat.Role         `json:"triggering_role,omitempty"`
	// Present (possibly empty) for refusals only
	Categories *[]policy.Category `json:"categories,omitempty"`
}

func newResultResponse(res *moderation.Result) *resultResponse {
	resp := &resultResponse{
		RunId:   res.RunId,
		Outcome: res.Outcome,
		Message: res.Message,
	}
	if res.Outcome == moderation.OutcomeRefusal {
		resp.TriggeringRole = internal.Pointer(res.TriggeringRole)
		resp.Categories = internal.Pointer(append(make([]policy.Category, 0, len(res.Categories)), res.Categories...))
	}
	return resp
}

// awaitRun submits a run and waits for its result or for the request to go away. On failure, the error has already
// been written to the response and the returned result is nil.
func awaitRun(errs *errorResponder, submit func(ch chan<- *queue.PoolResult) error) *moderation.Result {
	ch := make(chan *queue.PoolResult, 1) // use a buffered channel to reduce deadlock potential
	if err := submit(ch); err != nil {
		errs.errWithText(http.StatusInternalServerError, "M_UNKNOWN", err, "Unable to start run")
		return nil
	}

	// We don't want to read the result indefinitely, so involve the context
	var res *queue.PoolResult
	select {
	case res = <-ch:
	case <-errs.r.Context().Done():
		log.Printf("[%s] Request context cancelled: %s", errs.action, errs.r.Context().Err())
		errs.text(http.StatusRequestTimeout, "M_UNKNOWN", "Request timed out")
		return nil
	}

	if res.Err != nil {
		respondRunError(errs, res.Err)
		return nil
	}
	return res.Result
}

func respondRunError(errs *errorResponder, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		errs.text(http.StatusNotFound, "M_NOT_FOUND", "Session not found")
	case errors.Is(err, moderation.ErrEmptyTranscript),
		errors.Is(err, moderation.ErrNotUserTurn),
		errors.Is(err, chat.ErrInvalidRole):
		errs.errWithText(http.StatusBadRequest, "M_INVALID_PARAM", err, err.Error())
	default:
		// Includes *moderation.StageError and run timeouts. The cause may contain provider detail, so it is only logged.
		errs.errWithText(http.StatusBadGateway, "M_UNKNOWN", err, "Failed to process message")
	}
}
