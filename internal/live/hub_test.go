package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLiveServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/admin/live", WSHandler(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHub_BroadcastToSubscriber(t *testing.T) {
	hub, srv := newLiveServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, srv.URL+"/admin/live", "", func(b []byte) {
			mu.Lock()
			got = append(got, string(b))
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { return hub.Stats().Clients == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastJSON(map[string]string{"type": "page_view", "url": "/about/"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.True(t, strings.Contains(got[0], "welcome"))
	assert.JSONEq(t, `{"type":"page_view","url":"/about/"}`, got[1])
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	assert.Eventually(t, func() bool { return hub.Stats().Clients == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseAll(t *testing.T) {
	hub, srv := newLiveServer(t)

	done := make(chan error, 1)
	go func() {
		done <- Subscribe(context.Background(), srv.URL+"/admin/live", "", func([]byte) {})
	}()
	require.Eventually(t, func() bool { return hub.Stats().Clients == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.CloseAll()
	assert.Equal(t, 0, hub.Stats().Clients)

	select {
	case err := <-done:
		assert.NoError(t, err, "going-away close is a clean end of stream")
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.BroadcastJSON(map[string]int{"n": 1})
	assert.Equal(t, 0, hub.Stats().Clients)
}
