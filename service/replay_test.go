package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitbook/domain/orderbook"
	"limitbook/infra/wal/entry"
	"limitbook/snapshot"
)

func seed(t *testing.T, svc *OrderService) (restingID uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.NewMarket(ctx, btc))

	a, err := svc.PlaceLimitOrder(ctx, limit(orderbook.Ask, "101", 10))
	require.NoError(t, err)
	_, err = svc.PlaceLimitOrder(ctx, limit(orderbook.Ask, "102", 5))
	require.NoError(t, err)
	b, err := svc.PlaceLimitOrder(ctx, limit(orderbook.Bid, "99", 8))
	require.NoError(t, err)
	_, err = svc.PlaceMarketOrder(ctx, PlaceRequest{Pair: btc, Side: orderbook.Bid, Size: 4})
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, btc, b.OrderID)
	require.NoError(t, err)
	return a.OrderID
}

func TestRecoverFromJournal(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	restingID := seed(t, h.svc)
	want, err := h.svc.Depth(btc, 0)
	require.NoError(t, err)
	lastID := h.svc.ids.Current()
	h.close()

	h2 := newHarness(t, dir)
	stats, err := Recover(h2.svc, filepath.Join(dir, "snapshot"), filepath.Join(dir, "journal"))
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Applied)
	assert.Zero(t, stats.Rejected)
	assert.Equal(t, uint64(6), stats.LastSeq)

	got, err := h2.svc.Depth(btc, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the partially filled maker keeps its id and priority
	top, err := h2.svc.TopOfBook(btc)
	require.NoError(t, err)
	assert.Equal(t, int64(6), top.AskSize)
	_, err = h2.svc.CancelOrder(context.Background(), btc, restingID)
	require.NoError(t, err)

	next, err := h2.svc.PlaceLimitOrder(context.Background(), limit(orderbook.Bid, "90", 1))
	require.NoError(t, err)
	assert.Greater(t, next.OrderID, lastID, "ids are never reused after recovery")
	assert.Equal(t, uint64(8), h2.journal.LastSeq())
}

func TestRecoverFromSnapshotAndTail(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	seed(t, h.svc)

	snapSeq, err := h.svc.WriteSnapshot(&snapshot.Writer{Dir: filepath.Join(dir, "snapshot")})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), snapSeq)

	tail, err := h.svc.PlaceLimitOrder(context.Background(), limit(orderbook.Bid, "100", 2))
	require.NoError(t, err)
	want, err := h.svc.Depth(btc, 0)
	require.NoError(t, err)
	h.close()

	h2 := newHarness(t, dir)
	stats, err := Recover(h2.svc, filepath.Join(dir, "snapshot"), filepath.Join(dir, "journal"))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), stats.SnapshotSeq)
	assert.Equal(t, 1, stats.Applied)

	got, err := h2.svc.Depth(btc, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	next, err := h2.svc.PlaceLimitOrder(context.Background(), limit(orderbook.Bid, "90", 1))
	require.NoError(t, err)
	assert.Greater(t, next.OrderID, tail.OrderID)
}

func TestRecoverEmpty(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	stats, err := Recover(h.svc, filepath.Join(dir, "snapshot"), filepath.Join(dir, "journal"))
	require.NoError(t, err)
	assert.Zero(t, stats.Applied)
	assert.Empty(t, h.svc.Markets())
}

func TestCommandPayloadRoundTrip(t *testing.T) {
	price, err := orderbook.ParsePrice("12345678.00001")
	require.NoError(t, err)
	c := command{kind: entry.RecordPlaceLimit, pair: btc, id: 1<<62 + 3, side: orderbook.Ask, price: price, size: 1<<60 + 1}

	h := newHarness(t, t.TempDir())
	data, err := h.svc.codec.Encode(c.payload())
	require.NoError(t, err)
	p, err := h.svc.codec.Decode(data)
	require.NoError(t, err)

	got, err := decodeCommand(c.kind, p)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestSnapshotJobStopsBeforeJournalClose(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	seed(t, h.svc)
	snapDir := filepath.Join(dir, "snapshot")

	ctx, cancel := context.WithCancel(context.Background())
	done := h.svc.StartSnapshotJob(ctx, snapDir, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		snap, err := snapshot.Load(snapDir)
		return err == nil && snap != nil && snap.Seq == 6
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot job did not exit after cancel")
	}
	// nothing touches the journal once done is closed
	h.close()
	assert.Equal(t, uint64(6), h.journal.LastSeq())
}
