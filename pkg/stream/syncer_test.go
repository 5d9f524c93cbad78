package stream

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/auth"
	"github.com/ajitpratap0/tap-leaflink/pkg/clients"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/testutil"
)

var ordersDesc = Descriptor{
	Name:           "orders",
	Path:           "/x/",
	PrimaryKeys:    []string{"id"},
	ReplicationKey: "modified",
	SchemaKey:      "OrderResponse",
}

func newSyncer(t *testing.T, srv *testutil.APIServer) *Syncer {
	t.Helper()
	key, err := auth.NewAppKey("test-key")
	require.NoError(t, err)

	cfg := clients.DefaultHTTPConfig()
	cfg.Auth = key.Transport
	client := clients.NewHTTPClient(cfg, testutil.TestLogger(t))
	t.Cleanup(func() { client.Close() })

	return NewSyncer(client, srv.URL+"/")
}

func collector(out *[]Record) EmitFunc {
	return func(_ context.Context, rec Record) error {
		*out = append(*out, rec)
		return nil
	}
}

func twoPageServer(t *testing.T) *testutil.APIServer {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/",
		testutil.Page(srv.URL+"/x/?cursor=abc", map[string]interface{}{"id": 1, "modified": "2024-02-01"}),
		testutil.Page("", map[string]interface{}{"id": 2, "modified": "2024-02-02"}),
	)
	return srv
}

func TestSyncTwoPages(t *testing.T) {
	srv := twoPageServer(t)

	var records []Record
	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(&records))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, gojson.Number("1"), records[0]["id"])
	assert.Equal(t, gojson.Number("2"), records[1]["id"])
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, "2024-02-02", result.Watermark)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "100", reqs[0].Query.Get("limit"))
	assert.Empty(t, reqs[0].Query.Get("cursor"))
	assert.Equal(t, "abc", reqs[1].Query.Get("cursor"))
	assert.Equal(t, "100", reqs[1].Query.Get("limit"))
	for _, r := range reqs {
		assert.Equal(t, "/x/", r.Path)
		assert.Equal(t, "App test-key", r.Header.Get("Authorization"))
	}
}

func TestSyncSendsStartDateFilter(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", testutil.Page(""))

	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, "2024-01-01", collector(new([]Record)))
	require.NoError(t, err)

	q := srv.Requests()[0].Query
	assert.Equal(t, "2024-01-01", q.Get("modified__gte"))
	assert.Equal(t, "100", q.Get("limit"))
	assert.Equal(t, "2024-01-01", result.Watermark, "no records keeps the starting value")
}

func TestSyncFullTableIgnoresStart(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", testutil.Page("", map[string]interface{}{"id": 1, "modified": "2024-02-01"}))

	desc := ordersDesc
	desc.ReplicationKey = ""
	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), desc, "2024-01-01", collector(new([]Record)))
	require.NoError(t, err)

	for k := range srv.Requests()[0].Query {
		assert.NotContains(t, k, "__gte")
	}
	assert.Nil(t, result.Watermark)
}

func TestSyncNoResultsKey(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", `{"next": null}`)

	var records []Record
	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(&records))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, result.Pages)
	assert.Nil(t, result.Watermark)
}

func TestSyncIsIdempotent(t *testing.T) {
	run := func() ([]Record, Result) {
		srv := twoPageServer(t)
		var records []Record
		result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(&records))
		require.NoError(t, err)
		return records, result
	}

	firstRecords, firstResult := run()
	secondRecords, secondResult := run()
	assert.Equal(t, firstRecords, secondRecords)
	assert.Equal(t, firstResult, secondResult)
}

func TestSyncWatermarkIsMaxNotLast(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", testutil.Page("",
		map[string]interface{}{"id": 1, "modified": "2024-03-01T00:00:00Z"},
		map[string]interface{}{"id": 2, "modified": "2024-02-01T00:00:00Z"},
		map[string]interface{}{"id": 3, "modified": nil},
	))

	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, "2024-01-01", collector(new([]Record)))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, "2024-03-01T00:00:00Z", result.Watermark)
}

func TestSyncHTTPErrors(t *testing.T) {
	tests := []struct {
		status  int
		errType errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeAuthentication},
		{http.StatusForbidden, errors.ErrorTypeAuthentication},
		{http.StatusNotFound, errors.ErrorTypeHTTP},
		{http.StatusBadGateway, errors.ErrorTypeHTTP},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := testutil.NewAPIServer(t)
			srv.Queue("/x/", testutil.Response{Status: tt.status, Body: `{"detail":"nope"}`})

			_, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(new([]Record)))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType))

			status, ok := errors.Detail(err, "status")
			require.True(t, ok)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestSyncFailsMidStreamAfterEmitting(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", testutil.Page(srv.URL+"/x/?offset=1", map[string]interface{}{"id": 1, "modified": "2024-02-01"}))
	srv.Queue("/x/", testutil.Response{Status: http.StatusInternalServerError, Body: "boom"})

	var records []Record
	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(&records))
	require.Error(t, err)
	assert.Len(t, records, 1)
	assert.Nil(t, result.Watermark, "a failed sync reports no watermark")
}

func TestSyncMalformedNext(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", testutil.Page("https://x/?a=%zz", map[string]interface{}{"id": 1}))

	_, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(new([]Record)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePagination))
}

func TestSyncStopsOnLoopingNext(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	// the last queued page repeats forever with the same next link
	srv.QueuePages("/x/", testutil.Page(srv.URL+"/x/?offset=1", map[string]interface{}{"id": 1}))

	_, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(new([]Record)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePagination))
	assert.Len(t, srv.Requests(), 2)
}

func TestSyncMalformedBody(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.QueuePages("/x/", `<html>maintenance</html>`)

	_, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, collector(new([]Record)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestSyncEmitErrorStops(t *testing.T) {
	srv := twoPageServer(t)

	emit := func(context.Context, Record) error { return fmt.Errorf("disk full") }
	result, err := newSyncer(t, srv).Sync(testutil.TestContext(t), ordersDesc, nil, emit)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.Equal(t, 0, result.Records)
	assert.Len(t, srv.Requests(), 1)
}

func TestSyncHonorsCancellation(t *testing.T) {
	srv := twoPageServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSyncer(t, srv).Sync(ctx, ordersDesc, nil, collector(new([]Record)))
	require.Error(t, err)
	assert.Empty(t, srv.Requests())
}
