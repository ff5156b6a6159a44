package forward

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestForwarder_Send(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := New(srv.URL, time.Second)
	require.True(t, f.Enabled())
	require.NoError(t, f.Send(context.Background(), Summary{PageURL: "https://a.test", Content: "full text", Time: at}))

	assert.Equal(t, Tool, gjson.GetBytes(body, "tool").String())
	assert.Equal(t, "https://a.test", gjson.GetBytes(body, "pageUrl").String())
	assert.Equal(t, "full text", gjson.GetBytes(body, "summary").String())
	assert.Equal(t, "2024-05-01T10:00:00Z", gjson.GetBytes(body, "time").String())
}

func TestForwarder_Non2xxIsDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL, time.Second).Send(context.Background(), Summary{Content: "x"}))
}

func TestForwarder_UnreachableFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	assert.Error(t, New(url, time.Second).Send(context.Background(), Summary{Content: "x"}))
}

func TestForwarder_NotConfigured(t *testing.T) {
	f := New("  ", 0)
	assert.False(t, f.Enabled())
	assert.ErrorIs(t, f.Send(context.Background(), Summary{}), ErrNotConfigured)
}
