package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/telemetry/logging"
)

// ErrRecorderClosed is returned by Enqueue after Close.
var ErrRecorderClosed = errors.New("journal recorder closed")

// ErrQueueFull is returned by Enqueue when the write queue is full.
var ErrQueueFull = errors.New("journal queue full")

// Recorder journals cloud calls asynchronously.
type Recorder struct {
	storage      Storage
	redactor     *logging.Redactor
	writeTimeout time.Duration
	logger       *slog.Logger

	queue chan *Record
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ cloud.Observer = (*Recorder)(nil)

// NewRecorder starts a recorder writing to storage. URLs are passed through
// redactor before they are stored; a nil redactor still masks resource query
// parameters.
func NewRecorder(storage Storage, cfg config.JournalConfig, redactor *logging.Redactor) *Recorder {
	buffer := cfg.AsyncBuffer
	if buffer <= 0 {
		buffer = config.DefaultJournalAsyncBuffer
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = config.DefaultJournalWriteTimeout
	}
	if redactor == nil {
		redactor = logging.NewRedactor()
	}

	r := &Recorder{
		storage:      storage,
		redactor:     redactor,
		writeTimeout: timeout,
		logger:       slog.Default().With("component", "journal.recorder"),
		queue:        make(chan *Record, buffer),
		done:         make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// ObserveCall journals a completed call.
func (r *Recorder) ObserveCall(ctx context.Context, call cloud.Call) {
	record := &Record{
		ID:         NewRecordID(),
		RequestID:  logging.GetRequestID(ctx),
		Endpoint:   string(call.Endpoint),
		Method:     call.Method,
		URL:        r.redactor.RedactString(call.URL),
		StatusCode: call.StatusCode,
		Duration:   call.Duration,
		Conflicts:  call.Conflicts,
		Time:       time.Now(),
	}
	if call.Err != nil {
		record.Error = r.redactor.RedactString(call.Err.Error())
	}

	if err := r.Enqueue(record); err != nil {
		r.logger.Warn("dropping journal record",
			"record_id", record.ID,
			"endpoint", record.Endpoint,
			"error", err,
		)
	}
}

// ObserveConflicts is a no-op; the conflict count travels on the process
// call.
func (r *Recorder) ObserveConflicts(context.Context, []evidence.Conflict) {}

// Enqueue queues a record without blocking.
func (r *Recorder) Enqueue(record *Record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting records and waits until queued records are written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.queue:
			r.write(record)
		case <-r.done:
			for {
				select {
				case record := <-r.queue:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store journal record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	r.logger.Debug("journal record stored",
		"record_id", record.ID,
		"endpoint", record.Endpoint,
		"status_code", record.StatusCode,
	)
}
