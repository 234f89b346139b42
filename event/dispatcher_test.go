package event

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	method  string
	ctype   string
	key     string
	event   Event
	rawBody string
}

func recordingServer(t *testing.T, status int, gate <-chan struct{}) (*httptest.Server, <-chan received) {
	ch := make(chan received, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var e Event
		_ = json.Unmarshal(body, &e)
		if gate != nil {
			<-gate
		}
		ch <- received{
			method:  r.Method,
			ctype:   r.Header.Get("Content-Type"),
			key:     r.Header.Get("Idempotency-Key"),
			event:   e,
			rawBody: string(body),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ignored"))
	}))
	return srv, ch
}

func mustURL(t *testing.T, s string) *url.URL {
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func newLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func waitFor(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("nothing received")
	}
	return received{}
}

func TestDispatchPostsEvent(t *testing.T) {
	srv, ch := recordingServer(t, http.StatusOK, nil)
	defer srv.Close()

	logger, _ := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL+"/events"), WithLogger(logger))
	defer d.Close(context.Background())
	assert.Equal(t, srv.URL+"/events", d.Endpoint().String())

	e := Build("04-1A-2B-3C", "gate-1", DefaultPlace, time.Now())
	d.Dispatch(e)

	r := waitFor(t, ch)
	assert.Equal(t, http.MethodPost, r.method)
	assert.Equal(t, "application/json; charset=utf-8", r.ctype)
	assert.NotEmpty(t, r.key)
	assert.Equal(t, "04-1A-2B-3C", r.event.UID())
	assert.Equal(t, "gate-1", r.event.Initiator)
	assert.NotContains(t, r.rawBody, "\n", "body should be compact")
}

func TestDispatchIgnoresErrorStatus(t *testing.T) {
	srv, ch := recordingServer(t, http.StatusInternalServerError, nil)
	defer srv.Close()

	logger, hook := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL), WithLogger(logger))

	d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
	waitFor(t, ch)
	require.NoError(t, d.Close(context.Background()))

	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, entry.Level, entry.Message)
	}
}

func TestDispatchReturnsBeforeDelivery(t *testing.T) {
	gate := make(chan struct{})
	srv, ch := recordingServer(t, http.StatusOK, gate)
	defer srv.Close()

	logger, _ := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL), WithLogger(logger))

	returned := make(chan struct{})
	go func() {
		d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
		d.Dispatch(Build("02", "m", DefaultPlace, time.Now()))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on the network")
	}
	assert.Len(t, ch, 0)

	close(gate)
	uids := []string{waitFor(t, ch).event.UID(), waitFor(t, ch).event.UID()}
	assert.ElementsMatch(t, []string{"01", "02"}, uids)
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatchLogsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := mustURL(t, srv.URL)
	srv.Close()

	logger, hook := newLogger()
	d := NewDispatcher(endpoint, WithLogger(logger), WithWorkers(1))
	d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
	require.NoError(t, d.Close(context.Background()))

	var errs []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errs = append(errs, entry.Message)
		}
	}
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0], "connect") || strings.Contains(errs[0], "refused"), errs[0])
}

func TestDispatchTimeout(t *testing.T) {
	gate := make(chan struct{})
	srv, _ := recordingServer(t, http.StatusOK, gate)
	defer srv.Close()
	defer close(gate)

	logger, hook := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL), WithLogger(logger), WithTimeout(50*time.Millisecond))
	d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
	require.NoError(t, d.Close(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "deadline exceeded")
}

func TestCloseAbandonsAfterDeadline(t *testing.T) {
	gate := make(chan struct{})
	srv, _ := recordingServer(t, http.StatusOK, gate)
	defer srv.Close()
	defer close(gate)

	logger, hook := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL), WithLogger(logger), WithTimeout(0), WithWorkers(1))
	d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
	d.Dispatch(Build("02", "m", DefaultPlace, time.Now()))
	d.Dispatch(Build("03", "m", DefaultPlace, time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	// 01 is stuck at the endpoint, 02 and 03 never left the queue
	abandoned := ""
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Abandoning") {
			abandoned = entry.Message
		}
	}
	assert.Equal(t, "Abandoning 2 queued events", abandoned)
	assert.NoError(t, d.Close(context.Background()), "closing twice is fine")
}

func TestDispatchAfterCloseAndFullQueue(t *testing.T) {
	gate := make(chan struct{})
	srv, _ := recordingServer(t, http.StatusOK, gate)
	defer srv.Close()
	defer close(gate)

	logger, hook := newLogger()
	d := NewDispatcher(mustURL(t, srv.URL), WithLogger(logger), WithWorkers(1), WithQueueSize(1))

	// one in flight, one queued, the rest are dropped
	for i := 0; i < 5; i++ {
		d.Dispatch(Build("01", "m", DefaultPlace, time.Now()))
		time.Sleep(10 * time.Millisecond)
	}
	dropped := 0
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "queue full") {
			dropped++
		}
	}
	assert.GreaterOrEqual(t, dropped, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = d.Close(ctx)

	d.Dispatch(Build("02", "m", DefaultPlace, time.Now()))
	closed := false
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "Dispatcher closed") {
			closed = true
		}
	}
	assert.True(t, closed)
}
