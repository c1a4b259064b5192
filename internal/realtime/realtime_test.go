package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/models"
)

const insertPayload = `{"schema":"public","table":"messages","type":"INSERT",
  "commit_timestamp":"2024-05-01T10:00:00.123456+00:00",
  "record":{"id":9007199254740993,"chat_id":42,"author_id":7,"content":"Γεια"},"old_record":null}`

func TestParseChange(t *testing.T) {
	c, err := ParseChange([]byte(insertPayload))
	require.NoError(t, err)
	assert.Equal(t, "messages", c.Table)
	assert.Equal(t, EventInsert, c.Type)
	id, ok := c.Int64("id")
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), id)
	assert.Equal(t, 2024, c.CommitTimestamp.Year())

	_, err = ParseChange([]byte(`{"table":"messages","type":"TRUNCATE"}`))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	f, err := ParseFilter("chat_id=eq.42")
	require.NoError(t, err)
	assert.True(t, f.Matches(map[string]any{"chat_id": json.Number("42")}))
	assert.False(t, f.Matches(map[string]any{"chat_id": json.Number("43")}))
	assert.False(t, f.Matches(map[string]any{}))

	f, err = ParseFilter("author_id=neq.7")
	require.NoError(t, err)
	assert.False(t, f.Matches(map[string]any{"author_id": json.Number("7")}))

	f, err = ParseFilter(`status=in.(open, "resolved")`)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "resolved"}, f.Values)
	assert.True(t, f.Matches(map[string]any{"status": "resolved"}))
	assert.False(t, f.Matches(map[string]any{"status": "dismissed"}))
	assert.Equal(t, "status=in.(open,resolved)", f.String())

	for _, bad := range []string{"chat_id", "chat_id=gt.4", "chat_id=in.4", "=eq.1", "status=in.()"} {
		_, err := ParseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestFeedDispatch(t *testing.T) {
	feed := NewFeed(nil, nil)
	f, _ := ParseFilter("chat_id=eq.42")

	var got, all []Change
	unsub := feed.Subscribe(Subscription{Table: "messages", Event: EventInsert, Filter: &f}, func(c Change) { got = append(got, c) })
	feed.Subscribe(Subscription{Table: "messages", Event: EventAll}, func(c Change) { all = append(all, c) })

	c, _ := ParseChange([]byte(insertPayload))
	assert.Equal(t, 2, feed.Dispatch(c))

	del := Change{Table: "messages", Type: EventDelete, OldRecord: map[string]any{"chat_id": json.Number("42")}}
	assert.Equal(t, 1, feed.Dispatch(del), "delete filters on old_record but the insert-only subscription skips it")

	other := Change{Table: "chat_members", Type: EventUpdate, Record: map[string]any{"chat_id": json.Number("42")}}
	assert.Equal(t, 0, feed.Dispatch(other))

	unsub()
	unsub()
	assert.Equal(t, 1, feed.Len())
	assert.Len(t, got, 1)
	assert.Len(t, all, 2)
}

type fakeListener struct {
	notes chan *pgconn.Notification
}

func (l *fakeListener) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n, ok := <-l.notes:
		if !ok {
			return nil, errors.New("connection lost")
		}
		return n, nil
	}
}

func (l *fakeListener) Close(context.Context) error { return nil }

func TestFeedRunReconnects(t *testing.T) {
	first := &fakeListener{notes: make(chan *pgconn.Notification, 1)}
	second := &fakeListener{notes: make(chan *pgconn.Notification, 1)}
	var dials int32
	dial := func(context.Context) (Listener, error) {
		if atomic.AddInt32(&dials, 1) == 1 {
			return first, nil
		}
		return second, nil
	}

	logger, _ := test.NewNullLogger()
	feed := NewFeed(dial, logger)
	received := make(chan Change, 2)
	feed.Subscribe(Subscription{Table: "messages"}, func(c Change) { received <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	first.notes <- &pgconn.Notification{Payload: insertPayload}
	close(first.notes)
	second.notes <- &pgconn.Notification{Payload: insertPayload}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(3 * time.Second):
			t.Fatalf("change %d not delivered", i)
		}
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
}

func TestFeedRunLoadsMessageContent(t *testing.T) {
	// A maximum length message of four byte runes.
	content := strings.Repeat("😀", 2000)
	payload := `{"schema":"public","table":"messages","type":"UPDATE",
  "commit_timestamp":"2024-05-01T10:00:00+00:00",
  "record":{"id":11,"chat_id":42,"author_id":7,"edited_at":"2024-05-01T10:00:00+00:00"},
  "old_record":{"id":11,"chat_id":42,"author_id":7,"edited_at":null}}`
	require.Less(t, len(payload), 8000)

	listener := &fakeListener{notes: make(chan *pgconn.Notification, 1)}
	logger, _ := test.NewNullLogger()
	feed := NewFeed(func(context.Context) (Listener, error) { return listener, nil }, logger)

	var loaded []int64
	feed.Hydrate = MessageContent(func(_ context.Context, id int64) (models.Message, error) {
		loaded = append(loaded, id)
		return models.Message{ID: id, ChatID: 42, Content: content}, nil
	})
	f, _ := ParseFilter("chat_id=eq.42")
	received := make(chan Change, 1)
	feed.Subscribe(Subscription{Table: "messages", Event: EventAll, Filter: &f}, func(c Change) { received <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)
	listener.notes <- &pgconn.Notification{Payload: payload}

	select {
	case c := <-received:
		assert.Equal(t, content, c.Record["content"])
		assert.NotContains(t, c.OldRecord, "content")
	case <-time.After(3 * time.Second):
		t.Fatal("change not delivered")
	}
	assert.Equal(t, []int64{11}, loaded)
}

func TestMessageContentSkipsOtherChanges(t *testing.T) {
	calls := 0
	hydrate := MessageContent(func(context.Context, int64) (models.Message, error) {
		calls++
		return models.Message{}, errors.New("not found")
	})
	ctx := context.Background()

	members := Change{Table: "chat_members", Type: EventUpdate, Record: map[string]any{"chat_id": json.Number("1")}}
	out, err := hydrate(ctx, members)
	require.NoError(t, err)
	assert.Equal(t, members, out)

	del := Change{Table: "messages", Type: EventDelete, OldRecord: map[string]any{"id": json.Number("3")}}
	_, err = hydrate(ctx, del)
	require.NoError(t, err)

	c, _ := ParseChange([]byte(insertPayload))
	_, err = hydrate(ctx, c)
	require.NoError(t, err, "payloads that still carry content are passed through")

	missing := Change{Table: "messages", Type: EventInsert, Record: map[string]any{"id": json.Number("4")}}
	_, err = hydrate(ctx, missing)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func noSleep(context.Context, time.Duration) error { return nil }

func tokenServer(t *testing.T, handler func(w http.ResponseWriter, calls int32)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		handler(w, atomic.AddInt32(&calls, 1))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeToken(w http.ResponseWriter, token string, exp time.Time) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.RealtimeToken{Token: token, ExpiresAt: exp})
}

func TestTokenSourceCachesUntilSkew(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exp := now.Add(5 * time.Minute)
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		writeToken(w, "tok", exp)
	})

	ts := NewTokenSource(srv.URL, "access", srv.Client()).WithClock(func() time.Time { return now }, noSleep)
	ctx := context.Background()

	tok, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	_, _ = ts.Token(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	now = exp.Add(-ExpirySkew)
	_, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))

	ts.Invalidate()
	_, _ = ts.Token(ctx)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestTokenSourceRetriesServerErrors(t *testing.T) {
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		switch n {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeToken(w, "tok", time.Now().Add(time.Hour))
		}
	})

	var slept []time.Duration
	ts := NewTokenSource(srv.URL, "access", srv.Client()).WithClock(nil, func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, slept)
}

func TestTokenSourceGivesUp(t *testing.T) {
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ts := NewTokenSource(srv.URL, "access", srv.Client()).WithClock(nil, noSleep)

	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestTokenSourceDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	ts := NewTokenSource(srv.URL, "access", srv.Client()).WithClock(nil, noSleep)

	_, err := ts.Token(context.Background())
	var exErr *ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, http.StatusUnauthorized, exErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestTokenSourceSharesConcurrentFetch(t *testing.T) {
	release := make(chan struct{})
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		<-release
		writeToken(w, "tok", time.Now().Add(time.Hour))
	})
	ts := NewTokenSource(srv.URL, "access", srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestTokenSourceWaiterSurvivesCanceledLeader(t *testing.T) {
	release := make(chan struct{})
	srv, calls := tokenServer(t, func(w http.ResponseWriter, n int32) {
		<-release
		writeToken(w, "tok", time.Now().Add(time.Hour))
	})
	ts := NewTokenSource(srv.URL, "access", srv.Client())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := ts.Token(leaderCtx)
		leaderErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	type result struct {
		tok string
		err error
	}
	follower := make(chan result, 1)
	go func() {
		tok, err := ts.Token(context.Background())
		follower <- result{tok, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("canceled caller still waiting")
	}

	close(release)
	select {
	case res := <-follower:
		require.NoError(t, res.err)
		assert.Equal(t, "tok", res.tok)
	case <-time.After(3 * time.Second):
		t.Fatal("waiting caller got no token")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetryBackoffCaps(t *testing.T) {
	c := DefaultRetryConfig()
	assert.Equal(t, 500*time.Millisecond, c.backoff(0))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(5))
}

