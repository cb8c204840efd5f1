package api

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/storage"
)

type Config struct {
	// Optional. If empty, the /api/v1 routes will be disabled.
	ApiKey string
}

type Api struct {
	pool     *queue.Pool
	sessions *session.Store
	catalog  *policy.Catalog
	storage  storage.PersistentStorage // nil when persistence is disabled
	apiKey   string
}

func NewApi(config *Config, pool *queue.Pool, sessions *session.Store, catalog *policy.Catalog, storage storage.PersistentStorage) (*Api, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	return &Api{
		pool:     pool,
		sessions: sessions,
		catalog:  catalog,
		storage:  storage,
		apiKey:   config.ApiKey,
	}, nil
}

func (a *Api) httpRequestHandler(upstream func(api *Api, w http.ResponseWriter, r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstream(a, w, r)
	})
}

func (a *Api) httpAuthenticatedRequestHandler(upstream func(api *Api, w http.ResponseWriter, r *http.Request)) http.Handler {
	expected := []byte("Bearer " + a.apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiKey == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) != 1 {
			defer metrics.RecordHttpResponse(r.Method, "httpAuthenticatedRequestHandler", http.StatusUnauthorized)
			httpError(w, http.StatusUnauthorized, "M_UNAUTHORIZED", "Not allowed")
			return
		}

		upstream(a, w, r)
	})
}

func (a *Api) BindTo(mux *http.ServeMux) error {
	mux.Handle("/", a.httpRequestHandler(httpCatchAll))
	mux.Handle("/health", a.httpRequestHandler(httpHealth))
	mux.Handle("/ready", a.httpRequestHandler(httpReady))

	if a.apiKey != "" {
		log.Println("Enabling policyrelay API")
		mux.Handle("/api/v1/policy/categories", a.httpAuthenticatedRequestHandler(httpGetCategoriesApi))
		mux.Handle("/api/v1/sessions", a.httpAuthenticatedRequestHandler(httpCreateSessionApi))
		mux.Handle("/api/v1/sessions/{id}", a.httpAuthenticatedRequestHandler(httpSessionApi))
		mux.Handle("/api/v1/sessions/{id}/messages", a.httpAuthenticatedRequestHandler(httpSendSessionMessageApi))
		mux.Handle("/api/v1/sessions/{id}/audit", a.httpAuthenticatedRequestHandler(httpGetSessionAuditApi))
		mux.Handle("/api/v1/moderate", a.httpAuthenticatedRequestHandler(httpModerateApi))
	} else {
		log.Println("PR_API_KEY is not set: the policyrelay API is disabled")
	}

	return nil
}
