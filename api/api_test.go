package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/audit"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/test"
	"github.com/stretchr/testify/assert"
)

const testApiKey = "do_not_use_in_production_otherwise_sadness_will_be_created"
const testAccountId = "account1234"
const testApiToken = "not_a_real_token"

// Trigger words understood by the mock model server
const (
	wordUnsafeUser    = "robbery"   // the guard flags the user message as O3
	wordUnsafeReply   = "provoke"   // the responder replies with something the guard flags as 06
	wordResponderFail = "breakdown" // the responder fails
)

type testApi struct {
	api      *Api
	mux      *http.ServeMux
	db       *test.MemoryStorage
	sessions *session.Store
}

func lastConversationBlock(prompt string) string {
	start := strings.Index(prompt, "<BEGIN CONVERSATION>\n\n")
	end := strings.Index(prompt, "\n\n<END CONVERSATION>")
	if start < 0 || end < start {
		return ""
	}
	blocks := strings.Split(prompt[start+len("<BEGIN CONVERSATION>\n\n"):end], "\n\n")
	return blocks[len(blocks)-1]
}

func mockModel(req *test.CloudflareRunRequest) test.ModelReply {
	if req.Prompt != "" {
		block := lastConversationBlock(req.Prompt)
		switch {
		case strings.Contains(block, wordUnsafeUser):
			return test.ModelReply{Text: "unsafe\nO3"}
		case strings.Contains(block, "hurt yourself"):
			return test.ModelReply{Text: "unsafe\n06"}
		default:
			return test.ModelReply{Text: "safe"}
		}
	}

	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(last, wordResponderFail):
		return test.ModelReply{StatusCode: http.StatusInternalServerError, Text: "model exploded"}
	case strings.Contains(last, wordUnsafeReply):
		return test.ModelReply{Text: "You should hurt yourself."}
	default:
		return test.ModelReply{Text: "Reply to: " + last}
	}
}

func makeApiWithKey(t *testing.T, apiKey string) *testApi {
	server := test.MakeCloudflareServer(t, testAccountId, testApiToken, mockModel)
	t.Cleanup(server.Close)

	invoker, err := ai.NewCloudflareWorkersAI(&ai.CloudflareConfig{
		ApiUrl:     server.URL,
		AccountId:  testAccountId,
		ApiToken:   testApiToken,
		MaxRetries: 0,
	})
	assert.NoError(t, err)

	catalog := policy.DefaultCatalog()
	classifier, err := moderation.NewGuardClassifier(invoker, "@hf/thebloke/llamaguard-7b-awq", catalog)
	assert.NoError(t, err)
	responder, err := moderation.NewModelResponder(invoker, "@cf/meta/llama-2-7b-chat-int8", "")
	assert.NoError(t, err)
	pipeline, err := moderation.NewPipeline(classifier, responder)
	assert.NoError(t, err)

	db := test.NewMemoryStorage(t)
	auditQueue, err := audit.NewQueue(&audit.Config{PoolSize: 1}, db)
	assert.NoError(t, err)
	t.Cleanup(func() {
		_ = auditQueue.Close(time.Second)
	})

	sessions, err := session.NewStore(&session.Config{Ttl: time.Minute, MaxMessages: 50})
	assert.NoError(t, err)

	pool, err := queue.NewPool(&queue.PoolConfig{
		ConcurrentPools: 5,
		SizePerPool:     10,
		RunTimeout:      10 * time.Second,
	}, pipeline, sessions, auditQueue)
	assert.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Close(time.Second)
	})

	api, err := NewApi(&Config{
		ApiKey: apiKey,
	}, pool, sessions, catalog, db)
	assert.NoError(t, err)
	assert.NotNil(t, api)

	mux := http.NewServeMux()
	assert.NoError(t, api.BindTo(mux))

	return &testApi{api: api, mux: mux, db: db, sessions: sessions}
}

func makeApi(t *testing.T) *testApi {
	return makeApiWithKey(t, testApiKey)
}

func (a *testApi) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, test.MakeJsonBody(t, body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.Header.Set("Authorization", "Bearer "+testApiKey)
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, r)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) *resultResponse {
	res := &resultResponse{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), res))
	return res
}

func TestNewApiValidation(t *testing.T) {
	t.Parallel()

	_, err := NewApi(&Config{}, nil, nil, policy.DefaultCatalog(), nil)
	assert.Error(t, err)
}

func TestAuthenticatedApiNoAuth(t *testing.T) {
	t.Parallel()

	a := makeApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/example", nil)
	//r.Header.Set("Authorization", "Bearer WRONG_TOKEN") // we don't want auth on this test, so don't set it
	upstream := func(a *Api, w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "should not be called")
	}
	handler := a.api.httpAuthenticatedRequestHandler(upstream)
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	test.AssertApiError(t, w, "M_UNAUTHORIZED", "Not allowed")
}

func TestAuthenticatedApiWrongAuth(t *testing.T) {
	t.Parallel()

	a := makeApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/example", nil)
	r.Header.Set("Authorization", "Bearer WRONG_TOKEN")
	upstream := func(a *Api, w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "should not be called")
	}
	handler := a.api.httpAuthenticatedRequestHandler(upstream)
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	test.AssertApiError(t, w, "M_UNAUTHORIZED", "Not allowed")
}

func TestAuthenticatedApiWithAuth(t *testing.T) {
	t.Parallel()

	a := makeApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/example", nil)
	r.Header.Set("Authorization", "Bearer "+testApiKey)
	called := false
	upstream := func(a *Api, w http.ResponseWriter, r *http.Request) {
		called = true
	}
	handler := a.api.httpAuthenticatedRequestHandler(upstream)
	handler.ServeHTTP(w, r)
	assert.True(t, called)
}

func TestApiDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	a := makeApiWithKey(t, "")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/moderate", nil)
	r.Header.Set("Authorization", "Bearer ")
	a.mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
	test.AssertApiError(t, w, "M_UNRECOGNIZED", "not implemented")

	// Health stays up
	w = httptest.NewRecorder()
	a.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
