package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendarassist/internal/gateway"
	"github.com/teemow/calendarassist/internal/session"
)

var testLinkage = session.Linkage{UserID: "user-1", ConnectionID: "ca_1"}

type staticEndpoints struct {
	url   string
	err   error
	calls atomic.Int32
}

func (s *staticEndpoints) Endpoint(_ context.Context, _ string) (string, error) {
	s.calls.Add(1)
	return s.url, s.err
}

// fakeGateway replies to every tools/call with a fixed content type and body
// and keeps the last decoded request.
type fakeGateway struct {
	contentType string
	body        string
	status      int

	calls atomic.Int32
	last  atomic.Pointer[gateway.Request]
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	raw, _ := io.ReadAll(r.Body)
	var req gateway.Request
	if json.Unmarshal(raw, &req) == nil {
		f.last.Store(&req)
	}

	ct := f.contentType
	if ct == "" {
		ct = gateway.ContentTypeJSON
	}
	w.Header().Set("Content-Type", ct)
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = w.Write([]byte(f.body))
}

func newTestService(t *testing.T, gw *fakeGateway) (*Service, *staticEndpoints) {
	t.Helper()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	endpoints := &staticEndpoints{url: srv.URL + "/mcp?user_id=user-1"}
	svc := NewService(Config{
		Endpoints: endpoints,
		Invoker:   gateway.NewInvoker(gateway.InvokerConfig{APIKey: "ak_test"}),
		Location:  time.UTC,
		Now:       func() time.Time { return testNow },
	})
	return svc, endpoints
}

func itemsBody(events ...string) string {
	return `{"jsonrpc":"2.0","id":1,"result":{"items":[` + strings.Join(events, ",") + `]}}`
}

func rawEvent(id string, offset time.Duration) string {
	start := testNow.Add(offset).Format(time.RFC3339)
	end := testNow.Add(offset + time.Hour).Format(time.RFC3339)
	return `{"id":"` + id + `","summary":"` + id + `","start":{"dateTime":"` + start + `"},"end":{"dateTime":"` + end + `"}}`
}

func bookingIDs(bookings []Booking) []string {
	out := make([]string, len(bookings))
	for i, b := range bookings {
		out[i] = b.ID
	}
	return out
}

func TestService_ListBookings_FutureScenario(t *testing.T) {
	gw := &fakeGateway{body: itemsBody(
		rawEvent("tomorrow", 24*time.Hour),
		rawEvent("yesterday", -24*time.Hour),
		rawEvent("in-an-hour", time.Hour),
	)}
	svc, _ := newTestService(t, gw)

	bookings, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)

	assert.Equal(t, []string{"in-an-hour", "tomorrow"}, bookingIDs(bookings))
	assert.Equal(t, "3/10/2025, 1:00:00 PM", bookings[0].Time)
	assert.Equal(t, "1 hour", bookings[0].Duration)
}

func TestService_ListBookings_Past(t *testing.T) {
	gw := &fakeGateway{body: itemsBody(
		rawEvent("last-week", -7*24*time.Hour),
		rawEvent("tomorrow", 24*time.Hour),
		rawEvent("yesterday", -24*time.Hour),
	)}
	svc, _ := newTestService(t, gw)

	bookings, err := svc.ListBookings(context.Background(), Query{Partition: PartitionPast, Limit: 5}, testLinkage)
	require.NoError(t, err)
	assert.Equal(t, []string{"yesterday", "last-week"}, bookingIDs(bookings))
}

func TestService_ListBookings_RequestShape(t *testing.T) {
	gw := &fakeGateway{body: itemsBody()}
	svc, _ := newTestService(t, gw)

	_, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)

	req := gw.last.Load()
	require.NotNil(t, req)
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, gateway.MethodToolsCall, req.Method)
	assert.Equal(t, ToolListEvents, req.Params.Name)

	args := req.Params.Arguments
	assert.Equal(t, PrimaryCalendar, args["calendarId"])
	assert.Equal(t, "2025-03-10T12:00:00Z", args["timeMin"])
	assert.Equal(t, "2025-04-09T12:00:00Z", args["timeMax"])
	assert.EqualValues(t, 20, args["maxResults"])
	assert.Equal(t, "startTime", args["orderBy"])
	assert.Equal(t, true, args["singleEvents"])
	assert.Equal(t, "ca_1", args["connectedAccountId"])
}

func TestService_ListBookings_SplitEventStream(t *testing.T) {
	gw := &fakeGateway{
		contentType: "text/event-stream",
		body:        "event: message\ndata: {\"resul\ndata: t\":{\"items\":[]}}\n\n",
	}
	svc, _ := newTestService(t, gw)

	bookings, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestService_ListBookings_EventStreamMatchesJSON(t *testing.T) {
	doc := itemsBody(rawEvent("b", 2*time.Hour), rawEvent("a", time.Hour))

	jsonSvc, _ := newTestService(t, &fakeGateway{body: doc})
	want, err := jsonSvc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)

	var stream strings.Builder
	for len(doc) > 0 {
		n := min(17, len(doc))
		stream.WriteString("data: " + doc[:n] + "\n")
		doc = doc[n:]
	}
	stream.WriteString("\n")

	sseSvc, _ := newTestService(t, &fakeGateway{contentType: "text/event-stream", body: stream.String()})
	got, err := sseSvc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestService_ListBookings_ContentTextShape(t *testing.T) {
	inner := `{"successful":true,"data":{"items":[` + rawEvent("a", time.Hour) + `]}}`
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)

	gw := &fakeGateway{body: `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":` + string(quoted) + `}]}}`}
	svc, _ := newTestService(t, gw)

	bookings, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, bookingIDs(bookings))
}

func TestService_ListBookings_Idempotent(t *testing.T) {
	gw := &fakeGateway{body: itemsBody(
		rawEvent("c", 3*time.Hour),
		rawEvent("a", time.Hour),
		rawEvent("b", 2*time.Hour),
	)}
	svc, _ := newTestService(t, gw)
	q := Query{Partition: PartitionFuture, Limit: 2}

	first, err := svc.ListBookings(context.Background(), q, testLinkage)
	require.NoError(t, err)
	second, err := svc.ListBookings(context.Background(), q, testLinkage)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "c"}, bookingIDs(first))
}

func TestService_ListBookings_ShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		linkage session.Linkage
		wantErr error
	}{
		{name: "zero limit", query: Query{Partition: PartitionFuture, Limit: 0}, linkage: testLinkage, wantErr: ErrInvalidQuery},
		{name: "limit above maximum", query: Query{Partition: PartitionPast, Limit: 51}, linkage: testLinkage, wantErr: ErrInvalidQuery},
		{name: "unknown partition", query: Query{Partition: "later", Limit: 5}, linkage: testLinkage, wantErr: ErrInvalidQuery},
		{name: "missing connection", query: Query{Partition: PartitionFuture, Limit: 5}, linkage: session.Linkage{UserID: "user-1"}, wantErr: session.ErrNotConnected},
		{name: "missing user", query: Query{Partition: PartitionFuture, Limit: 5}, linkage: session.Linkage{ConnectionID: "ca_1"}, wantErr: session.ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{body: itemsBody()}
			svc, endpoints := newTestService(t, gw)

			_, err := svc.ListBookings(context.Background(), tt.query, tt.linkage)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, endpoints.calls.Load(), "endpoint must not be resolved")
			assert.Zero(t, gw.calls.Load(), "gateway must not be called")
		})
	}
}

func TestService_ListBookings_Failures(t *testing.T) {
	t.Run("endpoint resolution fails", func(t *testing.T) {
		gw := &fakeGateway{body: itemsBody()}
		svc, endpoints := newTestService(t, gw)
		endpoints.err = gateway.ErrSetup

		_, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
		assert.ErrorIs(t, err, gateway.ErrSetup)
		assert.Zero(t, gw.calls.Load())
	})

	t.Run("non-2xx", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeGateway{status: http.StatusBadGateway, body: "upstream down"})

		_, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
		var upErr *gateway.UpstreamError
		require.True(t, errors.As(err, &upErr))
		assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
		assert.Equal(t, "upstream down", upErr.Body)
	})

	t.Run("rpc error", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeGateway{body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"connected account not found"}}`})

		_, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
		var upErr *gateway.UpstreamError
		require.True(t, errors.As(err, &upErr))
		assert.Equal(t, "connected account not found", upErr.Message)
	})

	t.Run("malformed", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeGateway{contentType: "text/event-stream", body: "event: ping\n\n"})

		_, err := svc.ListBookings(context.Background(), Query{Partition: PartitionFuture, Limit: 5}, testLinkage)
		var mErr *gateway.MalformedResponseError
		require.True(t, errors.As(err, &mErr))
		assert.Equal(t, "event: ping\n\n", mErr.Fragment)
	})
}
