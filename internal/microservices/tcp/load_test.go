package tcp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmshub/internal/warehouse"
)

// Target: 30 concurrent connections, every one sees every broadcast.
func TestManyConnectionsReceiveEveryUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}
	const connections = 30

	store, err := warehouse.NewStore(warehouse.DefaultZones())
	require.NoError(t, err)
	server := startTestServer(t, store, nil, Options{WriteTimeout: 2 * time.Second})
	defer server.Stop()

	clients := make([]*Client, connections)
	for i := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		c, err := Dial(ctx, server.ListenAddr())
		cancel()
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.SetDeadline(time.Now().Add(10*time.Second)))
		clients[i] = c
	}
	require.Eventually(t, func() bool { return server.Manager.Count() == connections }, 2*time.Second, 10*time.Millisecond)

	var (
		wg      sync.WaitGroup
		updates atomic.Int64
	)
	start := time.Now()
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			// one package per client, then wait until every client's update arrived
			seen := 0
			f, err := c.Request(MsgPackageReceived, PackageReceivedRequest{
				PackageID: fmt.Sprintf("LOAD-%02d", i), OrderID: fmt.Sprintf("O-%02d", i),
				ClientID: "bench", Weight: 1, Dimensions: "1x1x1",
			}, func(PackageUpdate) { seen++ })
			if !assert.NoError(t, err) || !assert.Equal(t, uint32(MsgPackageReceived), f.Type) {
				return
			}
			for seen < connections {
				f, err := c.Receive()
				if !assert.NoError(t, err) {
					return
				}
				if _, ok := DecodeUpdate(f); ok {
					seen++
				}
			}
			updates.Add(int64(seen))
		}(i, c)
	}
	wg.Wait()

	t.Logf("connections=%d updates=%d elapsed=%s", connections, updates.Load(), time.Since(start))
	assert.Equal(t, connections, store.Snapshot().TotalPackages)
	assert.Equal(t, int64(connections*connections), updates.Load())
}

func BenchmarkDispatchPackageReceived(b *testing.B) {
	store, err := warehouse.NewStore([]warehouse.ZoneSpec{{ID: "A", Capacity: b.N + 1}})
	require.NoError(b, err)
	d := NewDispatcher(store, nil, nil)
	sess := &fakeSession{id: "bench"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload := fmt.Appendf(nil, `{"package_id":"P%d","order_id":"O%d","client_id":"C","weight":1,"dimensions":"1x1x1"}`, i, i)
		if res := d.Dispatch(sess, uint32(MsgPackageReceived), payload); res.Event == nil {
			b.Fatalf("unexpected response: %s", res.Response.Payload)
		}
	}
}

func BenchmarkWarehouseStatus(b *testing.B) {
	store, err := warehouse.NewStore(warehouse.DefaultZones())
	require.NoError(b, err)
	d := NewDispatcher(store, nil, nil)
	sess := &fakeSession{id: "bench"}
	for i := 0; i < 300; i++ {
		payload := fmt.Appendf(nil, `{"package_id":"P%d","order_id":"O","client_id":"C","weight":1,"dimensions":"1x1x1"}`, i)
		d.Dispatch(sess, uint32(MsgPackageReceived), payload)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Dispatch(sess, uint32(MsgWarehouseStatusReq), nil)
	}
}
