package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOwnerOf(t *testing.T) {
	assert.Equal(t, "p1", ownerOf(`{"player_id":"p1","owner":"x"}`))
	assert.Equal(t, "p2", ownerOf(`{"owner":"p2"}`))
	assert.Equal(t, "", ownerOf(`not json`))
}

func TestServeSSE_FiltersByPlayer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, ps := testutil.SetupTestCache(t)
	h := NewHandler(ps, zap.NewNop(), "loot_drop", "weapon_effect")
	r := gin.New()
	r.GET("/events", h.ServeSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?player=p1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
	require.Equal(t, "event: connected", next())

	_ = ps.Publish(ctx, "loot_drop", `{"player_id":"p2","kill_id":"other"}`)
	_ = ps.Publish(ctx, "weapon_effect", `{"owner":"p1","kind":"heal","amount":2}`)

	var got []string
	for len(got) < 2 {
		if l := next(); strings.HasPrefix(l, "event: ") || strings.HasPrefix(l, "data: ") {
			got = append(got, l)
		}
	}
	assert.Equal(t, []string{"event: weapon_effect", `data: {"owner":"p1","kind":"heal","amount":2}`}, got)
}
