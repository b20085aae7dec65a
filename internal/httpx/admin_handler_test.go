package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/toko-order-engine.git/internal/policy"
)

type fakePolicyStore struct{ hours []float64 }

func (f *fakePolicyStore) CurrentTimeoutHours(context.Context) (float64, error) {
	if len(f.hours) == 0 {
		return policy.DefaultTimeoutHours, nil
	}
	return f.hours[len(f.hours)-1], nil
}

func (f *fakePolicyStore) SetGlobalTimeout(_ context.Context, h float64) error {
	h = policy.RoundHours(h)
	if h <= 0 {
		return policy.ErrInvalidTimeout
	}
	f.hours = append(f.hours, h)
	return nil
}

func newAdminServer(store PolicyStore) *httptest.Server {
	r := NewRouter()
	(&AdminHandler{Policy: store}).Register(r)
	return httptest.NewServer(r)
}

func TestTimeoutPolicy_DefaultAndUpdate(t *testing.T) {
	store := &fakePolicyStore{}
	srv := newAdminServer(store)
	defer srv.Close()

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/admin/cancellation-timeout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 48.0, out["timeout_hours"])

	resp, out = doJSON(t, http.MethodPut, srv.URL+"/admin/cancellation-timeout", `{"timeout_hours":1.259}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.26, out["timeout_hours"])

	resp, out = doJSON(t, http.MethodGet, srv.URL+"/admin/cancellation-timeout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.26, out["timeout_hours"])
}

func TestTimeoutPolicy_RejectsNonPositive(t *testing.T) {
	srv := newAdminServer(&fakePolicyStore{})
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/admin/cancellation-timeout", `{"timeout_hours":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/admin/cancellation-timeout", `{"timeout_hours":-3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
