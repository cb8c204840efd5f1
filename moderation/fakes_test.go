package moderation

import (
	"context"
	"strings"
	"sync"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/chat"
)

// scriptedInvoker - Plays back canned model output. Prompt requests are treated as classifier calls and routed by
// the subject named in the guard prompt; message requests are treated as responder calls.
type scriptedInvoker struct {
	// Implements ai.Invoker

	userVerdict      string
	assistantVerdict string
	reply            string

	userErr      error
	assistantErr error
	replyErr     error

	lock     sync.Mutex
	requests []*ai.Request
}

func (s *scriptedInvoker) Name() string {
	return "scripted"
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req *ai.Request) (string, error) {
	s.lock.Lock()
	s.requests = append(s.requests, req)
	s.lock.Unlock()

	if req.Prompt == "" {
		return s.reply, s.replyErr
	}
	if strings.Contains(req.Prompt, "unsafe content in 'User' messages") {
		return s.userVerdict, s.userErr
	}
	return s.assistantVerdict, s.assistantErr
}

func (s *scriptedInvoker) Requests() []*ai.Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]*ai.Request{}, s.requests...)
}

// fakeClassifier - Returns a pre-built verdict per subject and counts calls.
type fakeClassifier struct {
	// Implements Classifier

	verdicts map[chat.Role]*Verdict
	errs     map[chat.Role]error

	lock  sync.Mutex
	calls map[chat.Role]int
	seen  map[chat.Role][]chat.Message // transcript given on the latest call per subject
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		verdicts: make(map[chat.Role]*Verdict),
		errs:     make(map[chat.Role]error),
		calls:    make(map[chat.Role]int),
		seen:     make(map[chat.Role][]chat.Message),
	}
}

func (f *fakeClassifier) Classify(ctx context.Context, transcript []chat.Message, subject chat.Role) (*Verdict, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[subject]++
	f.seen[subject] = append([]chat.Message{}, transcript...)
	if err := f.errs[subject]; err != nil {
		return nil, err
	}
	if v, ok := f.verdicts[subject]; ok {
		return v, nil
	}
	return &Verdict{Unsafe: false, Raw: "safe", Subject: subject}, nil
}

func (f *fakeClassifier) Calls(subject chat.Role) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[subject]
}

// fakeResponder - Returns a fixed reply and counts calls.
type fakeResponder struct {
	// Implements Responder

	reply string
	err   error

	lock  sync.Mutex
	calls int
}

func (f *fakeResponder) Respond(ctx context.Context, transcript []chat.Message) (chat.Message, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	if f.err != nil {
		return chat.Message{}, f.err
	}
	return chat.AssistantMessage(f.reply), nil
}

func (f *fakeResponder) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

// fakeModerator - Stands in for the hosted moderation endpoint.
type fakeModerator struct {
	// Implements Moderator

	result *ai.ModerationResult
	err    error
	texts  []string
}

func (f *fakeModerator) Moderate(ctx context.Context, text string) (*ai.ModerationResult, error) {
	f.texts = append(f.texts, text)
	return f.result, f.err
}
