package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const (
	dispatchTopic   = "mediaflow.jobs.dispatch"
	metadataJobType = "job_type"
)

// ClusterOptions configures a Cluster.
type ClusterOptions struct {
	Nodes  int
	Buffer int
	Logger *slog.Logger
	Clock  func() time.Time
	// Retention drops terminal jobs this long after completion. Zero keeps
	// them until Forget is called.
	Retention time.Duration
}

// Cluster runs jobs on in-process worker nodes fed through a watermill topic.
type Cluster struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	processors map[string]Processor

	pubsub    *gochannel.GoChannel
	nodes     int
	logger    *slog.Logger
	clock     func() time.Time
	retention time.Duration

	startOnce sync.Once
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type dispatchMessage struct {
	JobID string `json:"job_id"`
}

// NewCluster builds a cluster. Call Start before submitting work.
func NewCluster(opts ClusterOptions) *Cluster {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	nodes := opts.Nodes
	if nodes < 1 {
		nodes = 1
	}
	buffer := opts.Buffer
	if buffer < 1 {
		buffer = 64
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Cluster{
		jobs:       make(map[string]*Job),
		processors: make(map[string]Processor),
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(buffer),
		}, watermill.NewSlogLogger(logger)),
		nodes:     nodes,
		logger:    logging.NewComponentLogger(logger, "jobs"),
		clock:     clock,
		retention: opts.Retention,
	}
}

// RegisterProcessor binds a processor to a job type.
func (c *Cluster) RegisterProcessor(jobType string, p Processor) error {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" || p == nil {
		return services.Wrap(services.ErrConfiguration, "jobs", "register", "job type and processor are required", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.processors[jobType]; exists {
		return services.Wrap(services.ErrConfiguration, "jobs", "register", fmt.Sprintf("processor %q already registered", jobType), nil)
	}
	c.processors[jobType] = p
	return nil
}

// Start subscribes the worker nodes to the dispatch topic.
func (c *Cluster) Start(ctx context.Context) error {
	var startErr error
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		messages, err := c.pubsub.Subscribe(runCtx, dispatchTopic)
		if err != nil {
			cancel()
			startErr = fmt.Errorf("subscribe %s: %w", dispatchTopic, err)
			return
		}
		c.cancel = cancel
		for node := 1; node <= c.nodes; node++ {
			c.wg.Add(1)
			go c.runNode(runCtx, node, messages)
		}
		if c.retention > 0 {
			c.wg.Add(1)
			go c.prune(runCtx)
		}
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()
		c.logger.Info("job cluster started", logging.Int("nodes", c.nodes))
	})
	return startErr
}

// Close stops the nodes and the pub/sub. Jobs still running observe a
// cancelled context.
func (c *Cluster) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.pubsub.Close()
	c.wg.Wait()
	return err
}

// Submit records a QUEUED job and publishes it to the nodes.
func (c *Cluster) Submit(ctx context.Context, work Work) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrInvalidState, "jobs", "submit", "cluster not started", nil)
	}
	if _, ok := c.processors[work.Type]; !ok {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrConfiguration, "jobs", "submit", fmt.Sprintf("no processor for job type %q", work.Type), nil)
	}
	id := uuid.NewString()
	record := &Job{
		ID:          id,
		Work:        Work{Type: work.Type, Arguments: work.Arguments},
		Status:      StatusQueued,
		DateCreated: c.clock(),
	}
	c.jobs[id] = record
	c.mu.Unlock()

	payload, err := json.Marshal(dispatchMessage{JobID: id})
	if err != nil {
		return "", err
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(metadataJobType, work.Type)
	if err := c.pubsub.Publish(dispatchTopic, msg); err != nil {
		c.finish(id, "", services.Wrap(services.ErrTransient, "jobs", "publish", "dispatch failed", err))
		return "", fmt.Errorf("publish job %s: %w", id, err)
	}
	c.logger.Debug("job submitted",
		logging.String(logging.FieldJobID, id),
		logging.String("job_type", work.Type),
	)
	return id, nil
}

// Get returns a copy of the job record.
func (c *Cluster) Get(_ context.Context, id string) (Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s", id), nil)
	}
	return record.clone(), nil
}

func (c *Cluster) Status(ctx context.Context, id string) (Status, error) {
	j, err := c.Get(ctx, id)
	return j.Status, err
}

func (c *Cluster) Payload(ctx context.Context, id string) (string, error) {
	j, err := c.Get(ctx, id)
	return j.Payload, err
}

func (c *Cluster) QueueTime(ctx context.Context, id string) (time.Duration, error) {
	j, err := c.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return j.QueueTime(c.clock()), nil
}

func (c *Cluster) RunTime(ctx context.Context, id string) (time.Duration, error) {
	j, err := c.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return j.RunTime(c.clock()), nil
}

// Counts returns the number of known jobs per status.
func (c *Cluster) Counts() map[Status]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, j := range c.jobs {
		out[j.Status]++
	}
	return out
}

// Types lists the registered job types.
func (c *Cluster) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.processors))
	for t := range c.processors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Forget drops terminal jobs completed before cutoff and returns how many
// were removed.
func (c *Cluster) Forget(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, j := range c.jobs {
		if j.Status.IsTerminal() && j.DateCompleted.Before(cutoff) {
			delete(c.jobs, id)
			removed++
		}
	}
	return removed
}

func (c *Cluster) prune(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.retention)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Forget(c.clock().Add(-c.retention)); removed > 0 {
				c.logger.Debug("pruned finished jobs", logging.Int("removed", removed))
			}
		}
	}
}

func (c *Cluster) runNode(ctx context.Context, node int, messages <-chan *message.Message) {
	defer c.wg.Done()
	for msg := range messages {
		// Ack first so the subscription hands the next message to an idle node.
		msg.Ack()
		var dispatch dispatchMessage
		if err := json.Unmarshal(msg.Payload, &dispatch); err != nil {
			c.logger.Warn("discarding malformed job message",
				logging.String("message_uuid", msg.UUID),
				logging.Error(err),
			)
			continue
		}
		c.execute(ctx, node, dispatch.JobID)
	}
}

func (c *Cluster) execute(ctx context.Context, node int, id string) {
	c.mu.Lock()
	record, ok := c.jobs[id]
	if !ok || record.Status != StatusQueued {
		c.mu.Unlock()
		return
	}
	processor := c.processors[record.Work.Type]
	record.Status = StatusRunning
	record.Node = node
	record.DateStarted = c.clock()
	work := record.clone().Work
	c.mu.Unlock()

	logger := c.logger.With(
		logging.String(logging.FieldJobID, id),
		logging.String("job_type", work.Type),
		logging.Int("node", node),
	)
	logger.Debug("job started")

	payload, err := c.invoke(ctx, processor, work)
	c.finish(id, payload, err)
	if err != nil {
		logging.WarnWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the operation that submitted this job will retry or fail"),
		)
		return
	}
	logger.Debug("job finished")
}

func (c *Cluster) invoke(ctx context.Context, processor Processor, work Work) (payload string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrExternalTool, "jobs", work.Type, fmt.Sprintf("processor panic: %v", r), nil)
		}
	}()
	return processor(ctx, work)
}

func (c *Cluster) finish(id, payload string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.jobs[id]
	if !ok {
		return
	}
	record.DateCompleted = c.clock()
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return
	}
	record.Status = StatusFinished
	record.Payload = payload
}
