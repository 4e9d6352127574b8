package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(logger.Nop(), Config{BaseURL: srv.URL, Token: "tok", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestReflectSendsAuthAndTrace(t *testing.T) {
	var gotBody CaptureInput
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reflect", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "trace_0123456789abcdef", r.Header.Get("X-Trace-Id"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"id":"01J","insight":"ok","traceId":"trace_0123456789abcdef"}`))
	}))

	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "trace_0123456789abcdef"})
	out, err := c.Reflect(ctx, CaptureInput{TextRaw: "hi", Context: "family", Tags: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "01J", out.ID)
	assert.Equal(t, []string{}, out.Topics)
	assert.Equal(t, "hi", gotBody.TextRaw)
	assert.Equal(t, "family", gotBody.Context)
}

func TestAPIErrorDecoding(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/captures" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","traceId":"t1"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to generate reflection","details":"boom","error_category":"upstream","traceId":"t2"}`))
	}))

	_, err := c.ListCaptures(context.Background(), 5)
	assert.True(t, IsUnauthorized(err))

	_, err = c.Reflect(context.Background(), CaptureInput{TextRaw: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream", apiErr.Category)
	assert.Equal(t, "t2", apiErr.TraceID)
	assert.Contains(t, apiErr.Error(), "Failed to generate reflection")
}

func TestListAndTemplates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/captures":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"items":[{"id":"b","text_raw":"two","created_at":200},{"id":"a","text_raw":"one","created_at":100}]}`))
		case "/api/templates":
			_, _ = w.Write([]byte(`{"templates":[{"key":"daily","label":"Daily Reflection","text":"What did I learn today?"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))

	docs, err := c.ListCaptures(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.JSONEq(t, "200", string(docs[0].CreatedAt))

	tpls, err := c.Templates(context.Background())
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Equal(t, "Daily Reflection", tpls[0].Label)
}

func TestSubscribeDeliversSnapshotsThenError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/captures/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event: snapshot\ndata: {\"items\":[]}\n\n")
		fmt.Fprint(w, "event: snapshot\ndata: {\"items\":[{\"id\":\"a\",\"text_raw\":\"one\"}]}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"error\":\"store unavailable\"}\n\n")
	}))

	ch, err := c.Subscribe(context.Background(), 0)
	require.NoError(t, err)

	var got []Snapshot
	for s := range ch {
		got = append(got, s)
	}
	require.Len(t, got, 3)
	assert.Empty(t, got[0].Docs)
	require.Len(t, got[1].Docs, 1)
	assert.Equal(t, "a", got[1].Docs[0].ID)
	require.Error(t, got[2].Err)
	assert.Equal(t, "store unavailable", got[2].Err.Error())
}

func TestSubscribeRejectedStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	_, err := c.Subscribe(context.Background(), 0)
	assert.True(t, IsUnauthorized(err))
}

func TestSubscribeStopsOnCancel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: snapshot\ndata: {\"items\":[]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Subscribe(ctx, 0)
	require.NoError(t, err)
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestReadEvents(t *testing.T) {
	in := "event: a\ndata: one\ndata: two\n\n: comment\ndata: bare\n\nevent: tail\ndata: end"
	var got []string
	err := readEvents(strings.NewReader(in), func(event, data string) error {
		got = append(got, event+"="+data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=one\ntwo", "message=bare", "tail=end"}, got)
}
