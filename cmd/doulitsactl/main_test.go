package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
)

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:4001":       "ws://localhost:4001/ws",
		"https://api.doulitsa.gr/":    "wss://api.doulitsa.gr/ws",
		"https://doulitsa.gr/backend": "wss://doulitsa.gr/backend/ws",
	}
	for in, want := range cases {
		got, err := websocketURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestCallDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signin", r.URL.Path)
		var req models.SignInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eleni", req.Identifier)
		_ = json.NewEncoder(w).Encode(apperr.OK("ok", map[string]any{
			"tokens": map[string]string{"access_token": "acc", "refresh_token": "ref"},
		}))
	}))
	defer srv.Close()
	apiURL = srv.URL

	var out struct {
		Tokens models.Tokens `json:"tokens"`
	}
	err := call(context.Background(), http.MethodPost, "/auth/signin", models.SignInRequest{Identifier: "eleni", Password: "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "acc", out.Tokens.AccessToken)
}

func TestCallReturnsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(apperr.Result(apperr.ErrForbidden))
	}))
	defer srv.Close()
	apiURL = srv.URL

	err := call(context.Background(), http.MethodPost, "/admin/revalidate", models.RevalidateRequest{Tags: []string{"categories"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), apperr.MsgForbidden)
}
