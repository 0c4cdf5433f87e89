package imagegen

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"storybook/pkg/queue"
	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

// Work performs one generation.
type Work func(ctx context.Context, req *queue.Request) ([]byte, error)

// Queue runs image generations on a fixed pool of workers, pacing upstream
// calls with a shared rate limiter.
type Queue struct {
	work    Work
	workers int
	limiter *rate.Limiter
	stop    chan struct{}
	items   chan *Item
	wg      sync.WaitGroup
	once    sync.Once
}

type Item struct {
	Request  *queue.Request
	Response chan []byte
	Error    chan error
}

type Options struct {
	Workers  int
	Capacity int
	// PerMinute caps upstream calls. Zero disables pacing.
	PerMinute int
}

var _ queue.Queue = (*Queue)(nil)

func New(work Work, opts Options) *Queue {
	workers := max(opts.Workers, 1)
	capacity := max(opts.Capacity, 1)
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), workers)
	}
	return &Queue{
		work:    work,
		workers: workers,
		limiter: limiter,
		items:   make(chan *Item, capacity),
		stop:    make(chan struct{}),
	}
}

func (q *Queue) Start() {
	log.Info("Image queue started", "workers", q.workers, "capacity", cap(q.items))
	for i := range q.workers {
		q.wg.Add(1)
		go q.processLoop(i)
	}
}

// Stop signals the workers and waits for in-flight items to finish.
func (q *Queue) Stop() {
	q.once.Do(func() {
		close(q.stop)
		q.wg.Wait()
		log.Info("Image queue stopped")
	})
}

func (q *Queue) Add(req *queue.Request) (chan []byte, chan error, error) {
	if req.Ctx == nil {
		req.Ctx = context.Background()
	}
	respCh := make(chan []byte, 1)
	errCh := make(chan error, 1)

	select {
	case <-q.stop:
		return nil, nil, schema.ErrBackendUnavailable.Withf("queue is stopped")
	default:
	}

	select {
	case q.items <- &Item{
		Request:  req,
		Response: respCh,
		Error:    errCh,
	}:
		return respCh, errCh, nil
	default:
		return nil, nil, schema.ErrBackendUnavailable.Withf("queue is full")
	}
}

func (q *Queue) processLoop(worker int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		case item := <-q.items:
			q.processItem(worker, item)
		}
	}
}

func (q *Queue) processItem(worker int, item *Item) {
	req := item.Request

	if err := req.Ctx.Err(); err != nil {
		item.Error <- schema.ErrBackendUnavailable.Withf("request cancelled before generation").Wrap(err)
		close(item.Response)
		return
	}
	if err := q.limiter.Wait(req.Ctx); err != nil {
		item.Error <- schema.ErrBackendUnavailable.Withf("rate limit wait: %v", err).Wrap(err)
		close(item.Response)
		return
	}

	log.Debug("Processing generation", "worker", worker, "prompt", utils.LimitStr(req.Prompt, 50))

	data, err := q.work(req.Ctx, req)
	if err != nil {
		log.Warn("Generation failed", "worker", worker, "error", err)
		item.Error <- err
		close(item.Response)
		return
	}

	item.Response <- data
	close(item.Error)
}
