package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"argbot/pkg/logx"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := Open("redis://"+mr.Addr(), logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func mustMetrics(t *testing.T, st *Store) []Record {
	t.Helper()
	recs, err := st.ListAllMetrics(context.Background())
	if err != nil {
		t.Fatalf("ListAllMetrics: %v", err)
	}
	return recs
}

func TestRegisterIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	added, err := st.Register(ctx, 5)
	if err != nil || !added {
		t.Fatalf("first Register: added=%v err=%v", added, err)
	}
	added, err = st.Register(ctx, 5)
	if err != nil || added {
		t.Fatalf("repeat Register: added=%v err=%v", added, err)
	}

	ids, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("registry = %v", ids)
	}
}

func TestListAllSkipsMalformedMembers(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Register(ctx, 7); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := mr.SetAdd(recipientsKey, "not-a-number"); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}

	ids, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("snapshot = %v, want junk skipped", ids)
	}
}

func TestAuthorize(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := st.IsAuthorized(ctx, 10)
	if err != nil || ok {
		t.Fatalf("before Authorize: ok=%v err=%v", ok, err)
	}
	if err := st.Authorize(ctx, 10); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	ok, err = st.IsAuthorized(ctx, 10)
	if err != nil || !ok {
		t.Fatalf("after Authorize: ok=%v err=%v", ok, err)
	}
}

func TestUpsertMetricCreateThenIncrement(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	created, err := st.UpsertMetric(ctx, 7, Observation{Kind: "supergroup", Title: "Club", Username: "club"})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = st.UpsertMetric(ctx, 7, Observation{Kind: "supergroup", Title: "Club"})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}

	recs := mustMetrics(t, st)
	if len(recs) != 1 {
		t.Fatalf("records = %v", recs)
	}
	rec := recs[0]
	if rec.ChatID != 7 || rec.Kind != "supergroup" || rec.Title != "Club" || rec.Username != "club" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Count != 2 {
		t.Fatalf("count = %d, want 2", rec.Count)
	}
}

func TestUpsertMetricConcurrentCallsCountExactly(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	const calls = 24
	var wg sync.WaitGroup
	var created int64
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.UpsertMetric(ctx, 7, Observation{Kind: "group", Title: "Club"})
			if err != nil {
				t.Errorf("UpsertMetric: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&created, 1)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("%d creates, want exactly 1", created)
	}
	recs := mustMetrics(t, st)
	if len(recs) != 1 || recs[0].Count != calls {
		t.Fatalf("records = %+v, want one record with count %d", recs, calls)
	}
}

func TestUpsertMetricInviteLinkRules(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertMetric(ctx, 7, Observation{Kind: "group", Title: "Club", InviteLink: "https://t.me/+a"}); err != nil {
		t.Fatalf("UpsertMetric: %v", err)
	}

	// An observation without a link never clears the stored one, and fields
	// fixed at creation stay as captured.
	if _, err := st.UpsertMetric(ctx, 7, Observation{Kind: "group", Title: "Renamed"}); err != nil {
		t.Fatalf("UpsertMetric: %v", err)
	}
	rec := mustMetrics(t, st)[0]
	if rec.InviteLink != "https://t.me/+a" {
		t.Fatalf("empty observation cleared the link: %+v", rec)
	}
	if rec.Title != "Club" {
		t.Fatalf("title overwritten after creation: %+v", rec)
	}

	// A fresh non-empty link overwrites (chats regenerate their links).
	if _, err := st.UpsertMetric(ctx, 7, Observation{Kind: "group", InviteLink: "https://t.me/+b"}); err != nil {
		t.Fatalf("UpsertMetric: %v", err)
	}
	rec = mustMetrics(t, st)[0]
	if rec.InviteLink != "https://t.me/+b" {
		t.Fatalf("fresh link not captured: %+v", rec)
	}
	if rec.Count != 3 {
		t.Fatalf("count = %d, want 3", rec.Count)
	}
}

func TestClearMetricsResetsCountsKeepsMetadata(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, err := st.UpsertMetric(ctx, id, Observation{Kind: "group", Title: "Club"}); err != nil {
			t.Fatalf("UpsertMetric: %v", err)
		}
	}

	reset, err := st.ClearMetrics(ctx)
	if err != nil {
		t.Fatalf("ClearMetrics: %v", err)
	}
	if reset != 2 {
		t.Fatalf("reset = %d, want 2", reset)
	}
	for _, rec := range mustMetrics(t, st) {
		if rec.Count != 0 {
			t.Fatalf("count not reset: %+v", rec)
		}
		if rec.Title != "Club" {
			t.Fatalf("metadata lost on reset: %+v", rec)
		}
	}
}

func TestBroadcastRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := st.SubscribeBroadcasts(ctx)
	if err != nil {
		t.Fatalf("SubscribeBroadcasts: %v", err)
	}

	payload := []byte(`{"content_type":"text","text":"hi"}`)
	if err := st.PublishBroadcast(ctx, payload); err != nil {
		t.Fatalf("PublishBroadcast: %v", err)
	}

	select {
	case got := <-ch:
		if string(got) != string(payload) {
			t.Fatalf("payload = %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("payload not delivered to the subscriber")
	}
}
