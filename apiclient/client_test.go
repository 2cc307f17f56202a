package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/cloudhub-session/apiclient"
	"github.com/stretchr/testify/require"
)

type hackathon struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := apiclient.New("")
	require.Error(t, err)
}

func TestClient_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/hackathons/1":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(hackathon{ID: "1", Title: "AI Innovation Challenge"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/hackathons":
			var in hackathon
			_ = json.NewDecoder(r.Body).Decode(&in)
			in.ID = "2"
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(in)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/health":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("ok"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := apiclient.New(srv.URL+"/api/", apiclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/api", c.BaseURL())

	var got hackathon
	require.NoError(t, c.Get(ctx, "/hackathons/1", &got))
	require.Equal(t, "AI Innovation Challenge", got.Title)

	var created hackathon
	require.NoError(t, c.Post(ctx, "/hackathons", hackathon{Title: "New"}, &created))
	require.Equal(t, "2", created.ID)

	require.NoError(t, c.Delete(ctx, "/hackathons/2", nil))

	var text string
	require.NoError(t, c.Get(ctx, "/health", &text))
	require.Equal(t, "ok", text)

	err = c.Get(ctx, "/missing", &got)
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "/detail":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Hackathon is closed"}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := apiclient.New(srv.URL, apiclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = c.Get(ctx, "/unauthorized", nil)
	require.ErrorIs(t, err, apiclient.ErrSessionExpired)
	require.Equal(t, "Session expired. Please log in again.", err.Error())

	err = c.Get(ctx, "/detail", nil)
	require.EqualError(t, err, "API Error 400: Hackathon is closed")

	fast, err := apiclient.New(srv.URL, apiclient.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	err = fast.Get(ctx, "/slow", nil)
	require.ErrorContains(t, err, "request timeout after 20ms")
}
