// Package worker provides an asynchronous worker pool that pushes finished
// answers into the variable store and publishes an event for each attempt.
//
// The pool decouples the variable store from the relay's hot path: the client
// has already received [DONE] by the time a job runs, so failures here are
// logged and never reach the stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hypedigitaly/streamer/pkg/credentials"
	"github.com/hypedigitaly/streamer/pkg/eventstream"
	"github.com/hypedigitaly/streamer/pkg/eventstream/nop"
	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/variables"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is one answer to write into the variable store.
type Job struct {
	RequestID    string
	UserID       string
	Project      string
	Model        string
	VariableName string
	Answer       string

	// Partial marks an answer cut short by a stream failure.
	Partial bool
}

// KeyResolver selects the variable store key for a project.
type KeyResolver interface {
	Resolve(provider, selector string) (string, error)
}

// Updater writes an answer into a user's variables.
type Updater interface {
	SetAnswer(ctx context.Context, apiKey, userID, variable, answer string) (*variables.Result, error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Keys resolves the variable store credential per project.
	Keys KeyResolver

	// Updater writes the answers.
	Updater Updater

	// Publisher receives one event per processed job. Defaults to a no-op.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds one job (defaults to 30s).
	JobTimeout time.Duration

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes variable store jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Keys == nil || c.Updater == nil {
		return nil, errors.New("worker pool needs a key resolver and an updater")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed, job dropped",
			"request_id", job.RequestID,
			"user_id", job.UserID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"request_id", job.RequestID,
			"user_id", job.UserID,
			"project", job.Project,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"request_id", job.RequestID,
			"user_id", job.UserID,
			"project", job.Project,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain, then
// closes the publisher. Call this during graceful shutdown after the HTTP
// server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()

	if err := p.config.Publisher.Close(); err != nil {
		p.logger.Warn("closing event publisher", "error", err)
	}
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob writes the answer and publishes the outcome. Errors are logged.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	variable := job.VariableName
	if variable == "" {
		variable = variables.DefaultVariable
	}

	event := eventstream.NewAnswerCompletedEvent(time.Now())
	event.Source = eventstream.EventSource{Project: job.Project, Model: job.Model}
	event.RequestID = job.RequestID
	event.UserID = job.UserID
	event.VariableName = variable
	event.AnswerChars = len([]rune(job.Answer))
	event.Partial = job.Partial

	status, err := p.updateVariable(ctx, job, variable)
	event.VariableStoreStatus = status
	if err != nil {
		event.Error = err.Error()
		p.logger.Error("variable store update failed",
			"request_id", job.RequestID,
			"user_id", job.UserID,
			"project", job.Project,
			"status", status,
			"error", err,
		)
	} else {
		p.logger.Info("variable store updated",
			"request_id", job.RequestID,
			"user_id", job.UserID,
			"project", job.Project,
			"variable", variable,
			"partial", job.Partial,
		)
	}

	if err := p.config.Publisher.PublishAnswer(ctx, event); err != nil {
		p.logger.Warn("failed to publish answer event",
			"request_id", job.RequestID,
			"error", err,
		)
	}
}

func (p *Pool) updateVariable(ctx context.Context, job Job, variable string) (int, error) {
	key, err := p.config.Keys.Resolve(credentials.ProviderVoiceflow, job.Project)
	if err != nil {
		return 0, err
	}

	res, err := p.config.Updater.SetAnswer(ctx, key, job.UserID, variable, job.Answer)
	if err != nil {
		var se *variables.StatusError
		if errors.As(err, &se) {
			return se.StatusCode, err
		}
		return 0, err
	}

	return res.StatusCode, nil
}
