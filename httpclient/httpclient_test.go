package httpclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.JSONEq(t, `{"action":"echo"}`, string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	status, body, err := PostJSON(time.Second, srv.URL, map[string]string{"action": "echo"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestPostJSONTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, _, err := PostJSON(100*time.Millisecond, url, struct{}{})
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestMakePostDecodesAndChecksStatus(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]int{"value": 7})
	}))
	defer srv.Close()

	var in struct {
		Value int `json:"value"`
	}
	require.NoError(t, MakePost(time.Second, srv.URL, struct{}{}, &in))
	assert.Equal(t, 7, in.Value)

	status = http.StatusInternalServerError
	err := MakePost(time.Second, srv.URL, struct{}{}, &in)
	assert.ErrorIs(t, err, ErrStatusCodeMismatch)
}

func TestMakeGetNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, MakeGet(time.Second, srv.URL, nil))
}
