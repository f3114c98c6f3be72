package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/decoynet/honeypot/pkg/httputil"
)

const maxAttempts = 3

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

var deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "callback",
	Name:      "deliveries_total",
	Help:      "Callback delivery outcomes.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(deliveries)
}

// Dispatcher posts finalization reports. One Dispatcher is process-global;
// each dispatch runs in its own goroutine so the inbound turn returns
// immediately. At-most-once scheduling per session is the session manager's
// job; the dispatcher just delivers what it is handed.
type Dispatcher struct {
	url     string
	timeout time.Duration
	client  *http.Client
	queue   *Queue
	sem     *httputil.Semaphore
	wg      sync.WaitGroup

	// sleep is swapped out in tests to skip real backoff waits.
	sleep func(time.Duration)
}

// NewDispatcher builds a dispatcher. An empty url means reports are written
// straight to the durable queue with no network attempts.
func NewDispatcher(url string, timeout time.Duration, queue *Queue) *Dispatcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Dispatcher{
		url:     url,
		timeout: timeout,
		client:  httputil.FastClient(),
		queue:   queue,
		sem:     httputil.NewSemaphore(16),
		sleep:   time.Sleep,
	}
}

// Dispatch schedules asynchronous delivery and returns immediately.
func (d *Dispatcher) Dispatch(p Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// A recovery burst must not open one connection per queued report.
		if err := d.sem.Acquire(context.Background()); err != nil {
			return
		}
		defer d.sem.Release()
		d.deliver(p)
	}()
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(p Payload) {
	if d.url == "" {
		log.Printf("[CALLBACK] %s: no callback URL configured, queueing report", p.SessionID)
		d.enqueue(p)
		return
	}

	// One report ID across all attempts so the consumer can dedupe
	// retries of the same delivery.
	reportID := uuid.NewString()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.post(p, reportID)
		if err == nil {
			log.Printf("[CALLBACK] %s: delivered on attempt %d", p.SessionID, attempt)
			deliveries.WithLabelValues("ok").Inc()
			return
		}
		log.Printf("[CALLBACK] %s: attempt %d failed: %v", p.SessionID, attempt, err)
		if attempt < maxAttempts {
			d.sleep(jittered(backoffSchedule[attempt-1]))
		}
	}

	log.Printf("[CALLBACK] %s: all attempts failed, queueing report", p.SessionID)
	d.enqueue(p)
}

func (d *Dispatcher) post(p Payload, reportID string) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Report-Id", reportID)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := httputil.ReadErrorBody(resp.Body)
		return &statusError{code: resp.StatusCode, body: string(errBody)}
	}
	return nil
}

func (d *Dispatcher) enqueue(p Payload) {
	if err := d.queue.Append(p); err != nil {
		log.Printf("[CALLBACK] %s: FAILED to queue report: %v", p.SessionID, err)
		deliveries.WithLabelValues("lost").Inc()
		return
	}
	deliveries.WithLabelValues("queued").Inc()
}

// Recover drains the durable queue and re-dispatches every payload. Called
// once at startup; payloads that still cannot be delivered land back in the
// queue through the normal failure path.
func (d *Dispatcher) Recover() {
	payloads, skipped, err := d.queue.Drain()
	if err != nil {
		log.Printf("[CALLBACK] Recovery: drain failed: %v", err)
		return
	}
	if skipped > 0 {
		log.Printf("[CALLBACK] Recovery: skipped %d malformed queue lines", skipped)
	}
	if len(payloads) == 0 {
		return
	}

	log.Printf("[CALLBACK] Recovery: re-dispatching %d queued reports", len(payloads))
	for _, p := range payloads {
		d.Dispatch(p)
	}
}

// jittered spreads a backoff by up to ±20% so synchronized failures do not
// hammer the consumer in lockstep.
func jittered(d time.Duration) time.Duration {
	spread := float64(d) * 0.2
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}
