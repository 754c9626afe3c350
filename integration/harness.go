// Package integration runs the modforge server end to end over HTTP.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/modforge/api/rest"
	"github.com/kasuganosora/modforge/cache"
	"github.com/kasuganosora/modforge/game/action"
	"github.com/kasuganosora/modforge/game/armory"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/loot"
	"github.com/kasuganosora/modforge/game/player"
	"github.com/kasuganosora/modforge/game/script"
	mw "github.com/kasuganosora/modforge/middleware"
	"github.com/kasuganosora/modforge/resource"
	"github.com/kasuganosora/modforge/scheduler"
	"github.com/kasuganosora/modforge/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TestServer wraps a real HTTP server with every subsystem wired together.
// It mirrors the wiring in main.go.
type TestServer struct {
	Cache       cache.Cache
	PubSub      cache.PubSub
	Armory      *armory.Armory
	Loader      *resource.Loader
	CatalogPath string
	Server      *httptest.Server
	URL         string
}

// NewTestServer starts a server whose catalog is the given YAML source.
func NewTestServer(t *testing.T, catalogSrc string) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)

	path := filepath.Join(t.TempDir(), "mods.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogSrc), 0o644))

	sandbox := script.NewSandbox(2, time.Second, logger)
	bus := action.NewBusHost(pubsub, "weapon_effect", logger)
	actions := action.NewRegistry(bus, sandbox, logger)
	loader := resource.NewLoader(path, actions, logger)
	require.NoError(t, loader.Load())

	arm := armory.New(armory.Deps{
		Mods:          loader,
		Store:         armory.NewStore(db),
		Cache:         c,
		Resolver:      battle.NewResolverWithSource(2, 0.5, rand.NewSource(1)),
		SnapshotTTL:   time.Minute,
		ProjectileTTL: time.Minute,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	loader.OnReload(func(cat *resource.Catalog) { arm.Rebind(ctx, cat) })

	tracker := player.NewTracker(100, c, logger)
	lootSvc := loot.NewService(loot.Config{DedupeTTL: time.Minute, RecentSize: 10},
		loader, battle.NewSelector(battle.BoundaryInclusiveUpper), c, pubsub, tracker, nil, logger)

	sched := scheduler.New(ctx, logger)
	sched.AddTicker("world_tick", 20*time.Millisecond, func(tctx context.Context, now time.Time) { arm.Tick(tctx, now) })

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(1000), 2000))
	apirest.RegisterRoutes(r, apirest.Handlers{
		Weapon:  apirest.NewWeaponHandler(arm, loader, bus, nil, logger),
		Loot:    apirest.NewLootHandler(lootSvc, nil, logger),
		Player:  apirest.NewPlayerHandler(tracker, logger),
		Catalog: apirest.NewCatalogHandler(loader),
	})
	srv := httptest.NewServer(r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lootSvc.Run(gctx) })
	g.Go(func() error { return loader.Watch(gctx, 20*time.Millisecond) })

	t.Cleanup(func() {
		srv.Close()
		sched.Stop()
		cancel()
		_ = g.Wait()
	})

	return &TestServer{
		Cache:       c,
		PubSub:      pubsub,
		Armory:      arm,
		Loader:      loader,
		CatalogPath: path,
		Server:      srv,
		URL:         srv.URL,
	}
}

// Do sends a JSON request and decodes the JSON response into out when non-nil.
func (ts *TestServer) Do(t *testing.T, method, path string, body, out interface{}, headers ...string) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// WriteCatalog replaces the catalog file on disk.
func (ts *TestServer) WriteCatalog(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(ts.CatalogPath, []byte(src), 0o644))
}
