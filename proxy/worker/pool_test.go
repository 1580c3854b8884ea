package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hypedigitaly/streamer/pkg/credentials"
	"github.com/hypedigitaly/streamer/pkg/eventstream"
	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/variables"
)

type staticKeys map[string]string

func (k staticKeys) Resolve(provider, selector string) (string, error) {
	if provider != credentials.ProviderVoiceflow {
		return "", errors.New("unexpected provider")
	}
	if key, ok := k[selector]; ok {
		return key, nil
	}
	return "", credentials.ErrMissingKey
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.AnswerCompletedEvent
	closed bool
}

func (p *recordingPublisher) PublishAnswer(_ context.Context, e *eventstream.AnswerCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) Events() []*eventstream.AnswerCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.AnswerCompletedEvent(nil), p.events...)
}

type storeRequest struct {
	Path          string
	Authorization string
	Body          string
}

// blockingUpdater holds every job until release is closed.
type blockingUpdater struct {
	release chan struct{}
}

func (u *blockingUpdater) SetAnswer(ctx context.Context, _, _, _, _ string) (*variables.Result, error) {
	select {
	case <-u.release:
		return &variables.Result{StatusCode: http.StatusOK}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ = Describe("Pool", func() {
	var (
		mu        sync.Mutex
		requests  []storeRequest
		status    int
		server    *httptest.Server
		publisher *recordingPublisher
		pool      *Pool
	)

	received := func() []storeRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]storeRequest(nil), requests...)
	}

	BeforeEach(func() {
		requests = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			requests = append(requests, storeRequest{
				Path:          r.URL.Path,
				Authorization: r.Header.Get("Authorization"),
				Body:          string(body),
			})
			code := status
			mu.Unlock()
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{}`))
		}))
		DeferCleanup(server.Close)

		publisher = &recordingPublisher{}

		var err error
		pool, err = NewPool(&Config{
			Keys:      staticKeys{"teplice": "VF.teplice", "": "VF.default"},
			Updater:   variables.NewClient(variables.Config{Endpoint: server.URL}, logger.Nop()),
			Publisher: publisher,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)
	})

	Describe("NewPool", func() {
		It("requires a key resolver and an updater", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("applies defaults", func() {
			Expect(pool.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(pool.config.QueueSize).To(Equal(defaultJobQueueSize))
			Expect(pool.config.JobTimeout).To(Equal(defaultJobTimeout))
			pool.Close()
		})
	})

	Describe("processing", func() {
		It("writes the answer with the project key", func() {
			Expect(pool.Enqueue(Job{
				RequestID: "req-1",
				UserID:    "user 1",
				Project:   "teplice",
				Model:     "claude-3-5-sonnet-20241022",
				Answer:    "Ahoj",
			})).To(BeTrue())
			pool.Close()

			reqs := received()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Path).To(Equal("/state/user/user 1/variables"))
			Expect(reqs[0].Authorization).To(Equal("VF.teplice"))
			Expect(reqs[0].Body).To(MatchJSON(`{"LLM_Main_Response":"Ahoj"}`))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].RequestID).To(Equal("req-1"))
			Expect(events[0].UserID).To(Equal("user 1"))
			Expect(events[0].VariableName).To(Equal(variables.DefaultVariable))
			Expect(events[0].AnswerChars).To(Equal(4))
			Expect(events[0].VariableStoreStatus).To(Equal(http.StatusOK))
			Expect(events[0].Source.Project).To(Equal("teplice"))
			Expect(events[0].Error).To(BeEmpty())
			Expect(publisher.closed).To(BeTrue())
		})

		It("honors a custom variable name and marks partial answers", func() {
			pool.Enqueue(Job{UserID: "u", VariableName: "Answer", Answer: "half", Partial: true})
			pool.Close()

			Expect(received()[0].Body).To(MatchJSON(`{"Answer":"half"}`))
			Expect(received()[0].Authorization).To(Equal("VF.default"))
			Expect(publisher.Events()[0].Partial).To(BeTrue())
		})

		It("records the upstream status on failure", func() {
			mu.Lock()
			status = http.StatusUnauthorized
			mu.Unlock()

			pool.Enqueue(Job{UserID: "u", Project: "teplice", Answer: "x"})
			pool.Close()

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].VariableStoreStatus).To(Equal(http.StatusUnauthorized))
			Expect(events[0].Error).To(ContainSubstring("401"))
		})

		It("skips the store when no key resolves", func() {
			p, err := NewPool(&Config{
				Keys:      staticKeys{},
				Updater:   variables.NewClient(variables.Config{Endpoint: server.URL}, nil),
				Publisher: publisher,
			})
			Expect(err).NotTo(HaveOccurred())

			p.Enqueue(Job{UserID: "u", Project: "unknown", Answer: "x"})
			p.Close()
			pool.Close()

			Expect(received()).To(BeEmpty())
			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].VariableStoreStatus).To(BeZero())
			Expect(events[0].Error).To(ContainSubstring("API key not found"))
		})
	})

	Describe("Enqueue", func() {
		It("drops jobs when the queue is full", func() {
			pool.Close()

			updater := &blockingUpdater{release: make(chan struct{})}
			p, err := NewPool(&Config{
				Keys:       staticKeys{"": "k"},
				Updater:    updater,
				NumWorkers: 1,
				QueueSize:  1,
				JobTimeout: 5 * time.Second,
			})
			Expect(err).NotTo(HaveOccurred())

			// One job held by the worker, one in the queue.
			Expect(p.Enqueue(Job{UserID: "a"})).To(BeTrue())
			Eventually(func() int { return len(p.queue) }).Should(BeZero())
			Expect(p.Enqueue(Job{UserID: "b"})).To(BeTrue())
			Expect(p.Enqueue(Job{UserID: "c"})).To(BeFalse())

			close(updater.release)
			p.Close()
		})

		It("rejects jobs after Close", func() {
			pool.Close()
			Expect(pool.Enqueue(Job{UserID: "u"})).To(BeFalse())
		})

		It("tolerates Close twice", func() {
			pool.Close()
			Expect(pool.Close).NotTo(Panic())
		})
	})
})
