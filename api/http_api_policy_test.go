package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/test"
	"github.com/stretchr/testify/assert"
)

func TestGetCategoriesApi(t *testing.T) {
	t.Parallel()

	a := makeApi(t)

	w := a.do(t, http.MethodGet, "/api/v1/policy/categories", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := struct {
		Categories []policy.Category `json:"categories"`
	}{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, policy.DefaultCatalog().Categories(), body.Categories)

	w = a.do(t, http.MethodPost, "/api/v1/policy/categories", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	test.AssertApiError(t, w, "M_UNRECOGNIZED", "Method not allowed")
}
