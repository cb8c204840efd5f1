package api

import (
	"net/http"

	"github.com/matrix-org/policyrelay/metrics"
)

func httpGetCategoriesApi(api *Api, w http.ResponseWriter, r *http.Request) {
	metrics.RecordHttpRequest(r.Method, "httpGetCategoriesApi")
	t := metrics.StartRequestTimer(r.Method, "httpGetCategoriesApi")
	defer t.ObserveDuration()

	errs := newErrorResponder("httpGetCategoriesApi", w, r)

	if r.Method != http.MethodGet {
		errs.text(http.StatusMethodNotAllowed, "M_UNRECOGNIZED", "Method not allowed")
		return
	}

	err := respondJson("httpGetCategoriesApi", r, w, map[string]any{
		"categories": api.catalog.Categories(),
	})
	if err != nil {
		errs.err(http.StatusInternalServerError, "M_UNKNOWN", err)
		return
	}
}
