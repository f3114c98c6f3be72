package callback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Queue is the durable retry queue: one JSON payload per line, appended on
// delivery failure. Append is the only operation on the hot path; draining
// happens at startup.
type Queue struct {
	mu   sync.Mutex
	path string
}

// NewQueue opens a queue at path. The file is created lazily on first append.
func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Path returns the backing file path.
func (q *Queue) Path() string {
	return q.path
}

// Append writes one payload as a JSONL line. The file is synced so a crash
// right after a failed delivery does not lose the report.
func (q *Queue) Append(p Payload) error {
	line, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append queue: %w", err)
	}
	return f.Sync()
}

// Drain reads all queued payloads and truncates the file. Lines that fail to
// parse are skipped with a log-worthy count returned; the caller re-queues
// payloads it still cannot deliver.
func (q *Queue) Drain() ([]Payload, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open queue: %w", err)
	}

	var payloads []Payload
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p Payload
		if err := json.Unmarshal(line, &p); err != nil {
			skipped++
			continue
		}
		payloads = append(payloads, p)
	}
	scanErr := scanner.Err()
	_ = f.Close()
	if scanErr != nil {
		return payloads, skipped, fmt.Errorf("scan queue: %w", scanErr)
	}

	if err := os.Truncate(q.path, 0); err != nil {
		return payloads, skipped, fmt.Errorf("truncate queue: %w", err)
	}
	return payloads, skipped, nil
}

// Len counts queued payloads without consuming them.
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
