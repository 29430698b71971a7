package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"userId":"user-1","email":"mei@example.com","name":"Mei"}`))
	}))
	defer srv.Close()

	dir, err := NewHTTPDirectory(srv.URL, time.Second)
	require.NoError(t, err)

	u, err := dir.Lookup(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "mei@example.com", u.Email)
}

func TestLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir, err := NewHTTPDirectory(srv.URL, time.Second)
	require.NoError(t, err)

	u, err := dir.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestLookup_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir, err := NewHTTPDirectory(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = dir.Lookup(context.Background(), "user-1")
	require.Error(t, err)
}
