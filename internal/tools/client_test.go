package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tools/execute", r.URL.Path)

		var body struct {
			Name  string                 `json:"name"`
			Input map[string]interface{} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jd_parser", body.Name)
		assert.Equal(t, "Senior Go Engineer...", body.Input["text"])

		json.NewEncoder(w).Encode(InvokeResult{
			Result:     map[string]interface{}{"title": "Senior Go Engineer"},
			TokensUsed: 0,
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zaptest.NewLogger(t))
	res, err := client.Invoke(context.Background(), "jd_parser", map[string]interface{}{"text": "Senior Go Engineer..."})
	require.NoError(t, err)

	result, ok := res.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Senior Go Engineer", result["title"])
	assert.Equal(t, 0, res.TokensUsed)
}

func TestInvokeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such tool", http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zaptest.NewLogger(t))
	_, err := client.Invoke(context.Background(), "missing_tool", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "missing_tool")
}

func TestInvokeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("oops"))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zaptest.NewLogger(t))
	_, err := client.Invoke(context.Background(), "jd_parser", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
