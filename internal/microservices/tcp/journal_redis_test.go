package tcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmshub/internal/warehouse"
)

func newMiniredisSink(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisSink) {
	t.Helper()
	mr := miniredis.RunT(t)
	sink, err := NewRedisSink("redis://"+mr.Addr(), "", "", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return mr, sink
}

func TestRedisSinkMirrorsPackageState(t *testing.T) {
	mr, sink := newMiniredisSink(t, time.Hour)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pkg := warehouse.Package{
		PackageID: "P1", OrderID: "O1", ExternalOrderID: "EXT1", ClientID: "CL1",
		Status: warehouse.StatusReceived, Zone: "A", Weight: 2.5, Dimensions: "1x2x3",
		ReceivedAt: now, LastUpdated: now,
	}
	require.NoError(t, sink.Write(ctx, []warehouse.Event{{Kind: warehouse.EventReceived, Package: pkg, At: now}}))

	pkg.Status = warehouse.StatusLoaded
	pkg.Zone = ""
	pkg.LoadedVehicle = "V1"
	require.NoError(t, sink.Write(ctx, []warehouse.Event{{Kind: warehouse.EventLoaded, Package: pkg, At: now}}))

	key := PackageKey("P1")
	assert.Equal(t, "wms:package:P1", key)
	assert.Equal(t, "LOADED", mr.HGet(key, "status"))
	assert.Equal(t, "", mr.HGet(key, "zone"))
	assert.Equal(t, "V1", mr.HGet(key, "loaded_vehicle"))
	assert.Equal(t, "EXT1", mr.HGet(key, "external_order_id"))
	assert.Equal(t, "2.5", mr.HGet(key, "weight"))
	assert.Equal(t, "loaded", mr.HGet(key, "last_event"))
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(key))
}

func TestRedisSinkWithoutTTLKeepsKeys(t *testing.T) {
	mr, sink := newMiniredisSink(t, 0)
	ev := warehouse.Event{Kind: warehouse.EventReceived, Package: warehouse.Package{PackageID: "P1", Status: warehouse.StatusReceived}}
	require.NoError(t, sink.Write(context.Background(), []warehouse.Event{ev}))
	assert.Zero(t, mr.TTL(PackageKey("P1")))
}

func TestRedisSinkPublishesEvents(t *testing.T) {
	mr, sink := newMiniredisSink(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	sub := rdb.Subscribe(ctx, DefaultRedisChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	ev := warehouse.Event{
		Kind:           warehouse.EventCancelled,
		Package:        warehouse.Package{PackageID: "P9", Status: warehouse.StatusCancelled},
		PreviousStatus: warehouse.StatusProcessing,
	}
	require.NoError(t, sink.Write(ctx, []warehouse.Event{ev}))

	select {
	case msg := <-sub.Channel():
		var got warehouse.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, warehouse.EventCancelled, got.Kind)
		assert.Equal(t, "P9", got.Package.PackageID)
		assert.Equal(t, warehouse.StatusProcessing, got.PreviousStatus)
	case <-ctx.Done():
		t.Fatal("no event published")
	}
}

func TestNewRedisSinkRejectsBadURL(t *testing.T) {
	_, err := NewRedisSink("not a url", "", "", 0)
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestRedisSinkThroughJournal(t *testing.T) {
	mr, sink := newMiniredisSink(t, 0)
	store, err := warehouse.NewStore(warehouse.DefaultZones())
	require.NoError(t, err)
	journal := NewJournal(JournalOptions{BatchSize: 10, FlushInterval: 10 * time.Millisecond}, sink)
	journal.Start(context.Background())

	d := NewDispatcher(store, journal, nil)
	sess := &fakeSession{id: "c1"}
	dispatchJSON(t, d, sess, MsgPackageReceived, receivedBody("P1", "O1", ""))
	dispatchJSON(t, d, sess, MsgPackageProcessed, PackageRef{PackageID: "P1"})
	require.NoError(t, journal.Close())

	assert.Equal(t, "READY_FOR_LOADING", mr.HGet(PackageKey("P1"), "status"))
}

// gatedRecorder holds the first processed event until gate is closed, so the
// test controls which mutation reaches the journal first.
type gatedRecorder struct {
	inner   *Journal
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedRecorder) Record(ev warehouse.Event) {
	if ev.Kind == warehouse.EventProcessed {
		g.once.Do(func() { close(g.entered) })
		<-g.gate
	}
	g.inner.Record(ev)
}

func TestRedisMirrorFollowsStoreOrder(t *testing.T) {
	mr, sink := newMiniredisSink(t, 0)
	store, err := warehouse.NewStore(warehouse.DefaultZones())
	require.NoError(t, err)
	journal := NewJournal(JournalOptions{BatchSize: 10, FlushInterval: 10 * time.Millisecond}, sink)
	journal.Start(context.Background())
	gated := &gatedRecorder{inner: journal, gate: make(chan struct{}), entered: make(chan struct{})}

	d := NewDispatcher(store, gated, nil)
	dispatchJSON(t, d, &fakeSession{id: "c0"}, MsgPackageReceived, receivedBody("P1", "O1", ""))

	processed := make(chan Result, 1)
	go func() {
		processed <- d.Dispatch(&fakeSession{id: "c1"}, uint32(MsgPackageProcessed), []byte(`{"package_id":"P1"}`))
	}()
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("processed event never reached the recorder")
	}

	loaded := make(chan Result, 1)
	go func() {
		loaded <- d.Dispatch(&fakeSession{id: "c2"}, uint32(MsgPackageLoaded), []byte(`{"package_id":"P1","vehicle_id":"V1"}`))
	}()

	// the load must wait until the processed event has been recorded
	select {
	case <-loaded:
		t.Fatal("load completed while the processed event was still unrecorded")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gate)
	var res Result
	select {
	case res = <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("processed dispatch did not return")
	}
	assert.Equal(t, uint32(MsgPackageProcessed), res.Response.Type)
	select {
	case res = <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("loaded dispatch did not return")
	}
	assert.Equal(t, uint32(MsgPackageLoaded), res.Response.Type)

	require.NoError(t, journal.Close())
	key := PackageKey("P1")
	assert.Equal(t, "LOADED", mr.HGet(key, "status"))
	assert.Equal(t, "", mr.HGet(key, "zone"))
	assert.Equal(t, "loaded", mr.HGet(key, "last_event"))
}
