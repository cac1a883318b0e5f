package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/httpclient"
)

func TestProbeLive(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/live" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	client := httpclient.New(httpclient.Config{Timeout: time.Second})
	ctx := context.Background()

	assert.NoError(t, probeLive(ctx, client, upstream.URL+"/health/live"))
	assert.EqualError(t, probeLive(ctx, client, upstream.URL+"/live"), "upstream liveness returned 404")

	upstream.Close()
	assert.ErrorContains(t, probeLive(ctx, client, upstream.URL+"/health/live"), "upstream unreachable")
}
