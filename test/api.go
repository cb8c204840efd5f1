package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func MakeJsonBody(t *testing.T, body any) io.Reader {
	b, err := json.Marshal(body)
	assert.NoError(t, err)
	assert.NotNil(t, b)
	return bytes.NewReader(b)
}

// AssertApiError - Asserts the response is a JSON `{"errcode", "error"}` body with exactly the given values.
func AssertApiError(t *testing.T, w *httptest.ResponseRecorder, errcode string, error string) {
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	jsonErr := make(map[string]any)
	err := json.Unmarshal(w.Body.Bytes(), &jsonErr)
	assert.NoError(t, err)
	assert.Equal(t, errcode, jsonErr["errcode"])
	assert.Equal(t, error, jsonErr["error"])
	assert.Len(t, jsonErr, 2)
}
