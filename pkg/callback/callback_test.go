package callback

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(id string) Payload {
	return Payload{
		SessionID:    id,
		Status:       "completed",
		ScamDetected: true,
		ExtractedIntelligence: Intelligence{
			BankAccounts: []string{"123456789012"},
			UPIIDs:       []string{"fraudster@paytm"},
		},
		EngagementMetrics: Metrics{
			TotalMessagesExchanged:    9,
			EngagementDurationSeconds: 420,
		},
		AgentNotes: "Phishing attempt with urgency tactics in English.",
	}
}

func newTestDispatcher(url string, q *Queue) *Dispatcher {
	d := NewDispatcher(url, 2*time.Second, q)
	d.sleep = func(time.Duration) {}
	return d
}

func TestDispatchDeliversOnFirstAttempt(t *testing.T) {
	var got atomic.Int32
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	d := newTestDispatcher(srv.URL, q)
	d.Dispatch(testPayload("sess-1"))
	d.Wait()

	assert.Equal(t, int32(1), got.Load())

	var p Payload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "sess-1", p.SessionID)
	assert.Equal(t, 9, p.EngagementMetrics.TotalMessagesExchanged)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n, "successful delivery must not queue")
}

func TestPayloadShape(t *testing.T) {
	raw, err := json.Marshal(testPayload("sess-2"))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.NotContains(t, m, "totalMessagesExchanged",
		"totalMessagesExchanged must only appear inside engagementMetrics")
	metrics, ok := m["engagementMetrics"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, metrics, "totalMessagesExchanged")

	for _, key := range []string{"sessionId", "status", "scamDetected", "extractedIntelligence", "agentNotes"} {
		assert.Contains(t, m, key)
	}
}

func TestDispatchRetriesThenQueues(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	d := newTestDispatcher(srv.URL, q)
	d.Dispatch(testPayload("sess-3"))
	d.Wait()

	assert.Equal(t, int32(3), attempts.Load(), "exactly three attempts")

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exhausted delivery must queue the payload")
}

func TestDispatchRecoversMidway(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	d := newTestDispatcher(srv.URL, q)
	d.Dispatch(testPayload("sess-4"))
	d.Wait()

	assert.Equal(t, int32(2), attempts.Load())
	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReportIDStableAcrossRetries(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Report-Id"))
		if len(ids) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	d := newTestDispatcher(srv.URL, q)
	d.Dispatch(testPayload("sess-6"))
	d.Wait()

	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1], "retries of one delivery share a report id")
}

func TestEmptyURLGoesStraightToQueue(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	d := newTestDispatcher("", q)
	d.Dispatch(testPayload("sess-5"))
	d.Wait()

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueueAppendAndDrain(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))

	require.NoError(t, q.Append(testPayload("a")))
	require.NoError(t, q.Append(testPayload("b")))

	payloads, skipped, err := q.Drain()
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, payloads, 2)
	assert.Equal(t, "a", payloads[0].SessionID)
	assert.Equal(t, "b", payloads[1].SessionID)

	// Drain truncates
	payloads, _, err = q.Drain()
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestQueueSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry.jsonl")
	q := NewQueue(path)
	require.NoError(t, q.Append(testPayload("good")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	payloads, skipped, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, payloads, 1)
	assert.Equal(t, "good", payloads[0].SessionID)
}

func TestRecoverRedelivers(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewQueue(filepath.Join(t.TempDir(), "retry.jsonl"))
	require.NoError(t, q.Append(testPayload("queued-1")))
	require.NoError(t, q.Append(testPayload("queued-2")))

	d := newTestDispatcher(srv.URL, q)
	d.Recover()
	d.Wait()

	assert.Equal(t, int32(2), delivered.Load())
	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 1 * time.Second
	for i := 0; i < 100; i++ {
		got := jittered(base)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jittered backoff %v outside ±20%% of %v", got, base)
		}
	}
}
