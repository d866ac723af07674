// Package scheduler runs the periodic deposit and withdrawal passes for every
// ready user.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joelsaunders/bilbo/scheduler-service/internal/repository"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
)

// DefaultInterval is the time between ticks when none is configured.
const DefaultInterval = time.Minute

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// UserSource lists the users a tick should process.
type UserSource interface {
	ListReadyUsers(ctx context.Context) ([]*models.User, error)
}

// PassRunner runs fn in a unit of work that excludes other passes of the
// same kind for the same user.
type PassRunner interface {
	InPass(ctx context.Context, userID string, kind repository.PassKind, fn func(repository.LedgerTx) error) error
}

// Bank moves money between a user's main account and their pot.
type Bank interface {
	TransferIntoSavings(ctx context.Context, user *models.User, amount int64, dedupeID string) error
	TransferOutOfSavings(ctx context.Context, user *models.User, amount int64, dedupeID string) error
	PostFeedItem(ctx context.Context, user *models.User, title, body string) error
}

type Options struct {
	Interval time.Duration
	// Location is the timezone billing periods are evaluated in.
	Location *time.Location
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Summary describes one completed tick.
type Summary struct {
	StartedAt           time.Time `json:"startedAt"`
	FinishedAt          time.Time `json:"finishedAt"`
	Users               int       `json:"users"`
	DepositsRecorded    int       `json:"depositsRecorded"`
	WithdrawalsRecorded int       `json:"withdrawalsRecorded"`
	FailedPasses        int       `json:"failedPasses"`
}

// Status is a snapshot of the scheduler for the status endpoint.
type Status struct {
	State    string   `json:"state"`
	Interval string   `json:"interval"`
	Ticks    int64    `json:"ticks"`
	LastTick *Summary `json:"lastTick,omitempty"`
}

type Scheduler struct {
	users     UserSource
	ledger    PassRunner
	bank      Bank
	publisher events.Emitter

	interval time.Duration
	location *time.Location
	clock    func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	statsMu  sync.Mutex
	ticks    int64
	lastTick *Summary
}

func New(users UserSource, ledger PassRunner, bank Bank, publisher events.Emitter, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Scheduler{
		users:     users,
		ledger:    ledger,
		bank:      bank,
		publisher: publisher,
		interval:  opts.Interval,
		location:  opts.Location,
		clock:     opts.Clock,
	}
}

// Start begins ticking immediately and then once per interval. Calling
// Start on a running scheduler restarts its timer.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		log.Printf("Scheduler restarting")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = Running
	go s.loop(ctx)
	log.Printf("Scheduler started, ticking every %s", s.interval)
}

// Stop prevents future ticks. Passes already in flight run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return
	}
	s.cancel()
	s.cancel = nil
	s.state = Idle
	log.Printf("Scheduler stopped")
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	state := s.State()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	status := Status{State: state.String(), Interval: s.interval.String(), Ticks: s.ticks}
	if s.lastTick != nil {
		last := *s.lastTick
		status.LastTick = &last
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	go s.RunOnce(context.Background())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single tick and waits for every pass it launched.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	summary := Summary{StartedAt: s.clock()}
	now := summary.StartedAt.In(s.location)

	users, err := s.users.ListReadyUsers(ctx)
	if err != nil {
		log.Printf("Scheduler failed to list ready users: %v", err)
		summary.FailedPasses++
		return s.finish(summary)
	}
	summary.Users = len(users)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	run := func(kind repository.PassKind, user *models.User, pass func(context.Context, *models.User, time.Time) (int, error)) {
		defer wg.Done()
		recorded, err := s.guard(kind, user, func() (int, error) { return pass(ctx, user, now) })

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			summary.FailedPasses++
		}
		if kind == repository.DepositPass {
			summary.DepositsRecorded += recorded
		} else {
			summary.WithdrawalsRecorded += recorded
		}
	}

	for _, user := range users {
		wg.Add(2)
		go run(repository.DepositPass, user, s.depositPass)
		go run(repository.WithdrawalPass, user, s.withdrawalPass)
	}
	wg.Wait()

	return s.finish(summary)
}

func (s *Scheduler) finish(summary Summary) Summary {
	summary.FinishedAt = s.clock()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.ticks++
	s.lastTick = &summary
	return summary
}

// guard runs one pass, turning a panic into an error so that a single user
// cannot take down the tick.
func (s *Scheduler) guard(kind repository.PassKind, user *models.User, pass func() (int, error)) (recorded int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler %s pass for user %s panicked: %v\n%s", kind, user.ID, r, debug.Stack())
			err = fmt.Errorf("%s pass panicked: %v", kind, r)
		}
	}()

	recorded, err = pass()
	if err != nil {
		log.Printf("Scheduler %s pass for user %s failed: %v", kind, user.ID, err)
	}
	return recorded, err
}

func (s *Scheduler) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
