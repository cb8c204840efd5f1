package moderation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/storage"
)

var ErrEmptyTranscript = errors.New("transcript is empty")
var ErrNotUserTurn = errors.New("transcript must end with a user message")

type State string

const StateClassifyUser State = "classify_user"
const StateRespond State = "respond"
const StateClassifyAssistant State = "classify_assistant"
const StateRefuseUser State = "refuse_user"
const StateRefuseAssistant State = "refuse_assistant"
const StateDone State = "done"

type Outcome string

const OutcomeFinal Outcome = "final"
const OutcomeRefusal Outcome = "refusal"

// StageError - A collaborator failed during the named stage. The run produced no result.
type StageError struct {
	RunId string
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("run %s failed at %s: %v", e.RunId, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result - The single outbound message of a run. For OutcomeFinal the message is the responder's reply; for
// OutcomeRefusal it is a refusal and TriggeringRole/Categories say why.
type Result struct {
	RunId          string
	Outcome        Outcome
	Message        chat.Message
	TriggeringRole chat.Role         // only set for OutcomeRefusal
	Categories     []policy.Category // only set for OutcomeRefusal, and may be empty
	Verdicts       []*Verdict        // in the order they were made
}

// Pipeline - Moderates a conversation turn: classify the user, respond, classify the assistant. Holds no mutable
// state and is safe for concurrent use.
type Pipeline struct {
	classifier Classifier
	responder  Responder
}

func NewPipeline(classifier Classifier, responder Responder) (*Pipeline, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	return &Pipeline{
		classifier: classifier,
		responder:  responder,
	}, nil
}

// Run - Executes one turn against the transcript, which must end with a user message. The transcript is copied and
// never modified. Returns exactly one of a Result or an error.
func (p *Pipeline) Run(ctx context.Context, transcript []chat.Message) (*Result, error) {
	if len(transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	if err := chat.Validate(transcript); err != nil {
		return nil, err
	}
	if last, _ := chat.Last(transcript); last.Role != chat.RoleUser {
		return nil, ErrNotUserTurn
	}

	runId := storage.NextId()
	working := chat.Clone(transcript)
	res := &Result{
		RunId:    runId,
		Verdicts: make([]*Verdict, 0, 2),
	}

	// Note: we don't want to log message contents in production
	log.Printf("[%s | %s] Starting run over %d messages", runId, StateClassifyUser, len(transcript))

	state := StateClassifyUser
	var verdict *Verdict
	for state != StateDone {
		switch state {
		case StateClassifyUser, StateClassifyAssistant:
			subject := chat.RoleUser
			if state == StateClassifyAssistant {
				subject = chat.RoleAssistant
			}
			var err error
			verdict, err = p.classify(ctx, runId, state, working, subject)
			if err != nil {
				return nil, p.fail(runId, state, err)
			}
			res.Verdicts = append(res.Verdicts, verdict)
			state = nextAfterVerdict(state, verdict)
		case StateRespond:
			t := metrics.StartStageTimer(string(state))
			reply, err := p.responder.Respond(ctx, working)
			t.ObserveDuration()
			if err != nil {
				return nil, p.fail(runId, state, err)
			}
			working = append(working, reply)
			state = StateClassifyAssistant
		case StateRefuseUser, StateRefuseAssistant:
			res.Outcome = OutcomeRefusal
			res.TriggeringRole = verdict.Subject
			res.Categories = verdict.Categories
			res.Message = FormatRefusal(verdict.Subject, verdict.Categories)
			log.Printf("[%s | %s] Refusing on behalf of %s message (%d categories)", runId, state, verdict.Subject, len(verdict.Categories))
			metrics.RecordPipelineRun(metrics.RunStatusRefusal, string(verdict.Subject))
			state = StateDone
		default:
			return nil, p.fail(runId, state, fmt.Errorf("unknown state '%s'", state)) // "should never happen"
		}
	}

	if res.Outcome == "" {
		res.Outcome = OutcomeFinal
		res.Message, _ = chat.Last(working)
		log.Printf("[%s | %s] Returning reply", runId, StateDone)
		metrics.RecordPipelineRun(metrics.RunStatusFinal, "")
	}
	return res, nil
}

func (p *Pipeline) classify(ctx context.Context, runId string, state State, transcript []chat.Message, subject chat.Role) (*Verdict, error) {
	t := metrics.StartStageTimer(string(state))
	defer t.ObserveDuration()

	verdict, err := p.classifier.Classify(ctx, transcript, subject)
	if err != nil {
		return nil, err
	}
	if verdict.Unrecognized {
		log.Printf("[%s | %s] Classifier output was not recognized; treating as unsafe", runId, state)
	}
	log.Printf("[%s | %s] Verdict for %s: unsafe=%t categories=%v", runId, state, subject, verdict.Unsafe, verdict.Codes())
	metrics.RecordVerdict(string(subject), verdict.Unsafe, !verdict.Unrecognized, verdict.Codes())
	return verdict, nil
}

func (p *Pipeline) fail(runId string, state State, err error) error {
	log.Printf("[%s | %s] Run failed: %s", runId, state, err)
	metrics.RecordPipelineRun(metrics.RunStatusError, "")
	return &StageError{RunId: runId, Stage: state, Err: err}
}

func nextAfterVerdict(state State, verdict *Verdict) State {
	if state == StateClassifyUser {
		if verdict.Unsafe {
			return StateRefuseUser
		}
		return StateRespond
	}
	if verdict.Unsafe {
		return StateRefuseAssistant
	}
	return StateDone
}
