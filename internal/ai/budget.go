package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anyuan-chen/manga/internal/platform/cache"
)

// ErrBudgetExceeded is returned when a learner has used up the daily
// generation budget.
var ErrBudgetExceeded = errors.New("generation budget exceeded")

// budgetKeyTTL keeps a day's counter around past midnight so late requests
// in other time zones still see it.
const budgetKeyTTL = 48 * time.Hour

// BudgetChecker checks and records generation token usage per learner per
// UTC day. A limit of zero means unlimited.
type BudgetChecker interface {
	// Check returns true if the learner has budget remaining today.
	Check(ctx context.Context, learnerID string) (bool, error)
	// Record adds token usage for the learner today.
	Record(ctx context.Context, learnerID string, tokens int) error
	// Usage returns today's usage and the learner's limit.
	Usage(ctx context.Context, learnerID string) (used int64, limit int64, err error)
}

// InMemoryBudget is an in-process budget tracker for development and tests.
type InMemoryBudget struct {
	mu           sync.RWMutex
	defaultLimit int64
	limits       map[string]int64 // learner -> limit override
	usage        map[string]int64 // learner:day -> tokens used
	now          func() time.Time
}

// NewInMemoryBudget creates a tracker applying defaultLimit to every learner.
func NewInMemoryBudget(defaultLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultLimit: defaultLimit,
		limits:       make(map[string]int64),
		usage:        make(map[string]int64),
		now:          time.Now,
	}
}

// SetBudget overrides the daily limit for one learner.
func (b *InMemoryBudget) SetBudget(learnerID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[learnerID] = tokens
}

func (b *InMemoryBudget) limit(learnerID string) int64 {
	if l, ok := b.limits[learnerID]; ok {
		return l
	}
	return b.defaultLimit
}

func (b *InMemoryBudget) Check(_ context.Context, learnerID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit := b.limit(learnerID)
	if limit <= 0 {
		return true, nil
	}
	return b.usage[dayKey(learnerID, b.now())] < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, learnerID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[dayKey(learnerID, b.now())] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, learnerID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[dayKey(learnerID, b.now())], b.limit(learnerID), nil
}

func dayKey(learnerID string, t time.Time) string {
	return learnerID + ":" + t.UTC().Format(time.DateOnly)
}

// RedisBudget tracks usage in Redis so every server instance shares one
// counter per learner per day.
type RedisBudget struct {
	client redis.Cmdable
	limit  int64
	now    func() time.Time
}

// NewRedisBudget creates a Redis-backed tracker with a daily limit.
func NewRedisBudget(client redis.Cmdable, dailyLimit int64) *RedisBudget {
	return &RedisBudget{client: client, limit: dailyLimit, now: time.Now}
}

func (b *RedisBudget) key(learnerID string) string {
	return cache.Key("budget", learnerID, b.now().UTC().Format(time.DateOnly))
}

func (b *RedisBudget) used(ctx context.Context, learnerID string) (int64, error) {
	n, err := cache.Counter(ctx, b.client, b.key(learnerID))
	if err != nil {
		return 0, fmt.Errorf("read budget: %w", err)
	}
	return n, nil
}

func (b *RedisBudget) Check(ctx context.Context, learnerID string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, err := b.used(ctx, learnerID)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, learnerID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	if _, err := cache.Incr(ctx, b.client, b.key(learnerID), int64(tokens), budgetKeyTTL); err != nil {
		return fmt.Errorf("record budget: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, learnerID string) (int64, int64, error) {
	used, err := b.used(ctx, learnerID)
	if err != nil {
		return 0, 0, err
	}
	return used, b.limit, nil
}

type budgetedCompleter struct {
	next   Completer
	budget BudgetChecker
}

// WithBudget wraps next so requests carrying a learner (see WithLearner) are
// refused with ErrBudgetExceeded once the learner's budget is spent, and
// successful completions are charged to the learner. Requests without a
// learner pass through unmetered.
func WithBudget(next Completer, budget BudgetChecker) Completer {
	if budget == nil {
		return next
	}
	return &budgetedCompleter{next: next, budget: budget}
}

func (b *budgetedCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	learnerID, ok := LearnerFrom(ctx)
	if !ok {
		return b.next.Complete(ctx, req)
	}

	allowed, err := b.budget.Check(ctx, learnerID)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("check budget: %w", err)
	}
	if !allowed {
		return CompletionResponse{}, fmt.Errorf("learner %s: %w", learnerID, ErrBudgetExceeded)
	}

	resp, err := b.next.Complete(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := b.budget.Record(ctx, learnerID, resp.TotalTokens()); err != nil {
		slog.Warn("failed to record generation usage", "learner_id", learnerID, "error", err)
	}
	return resp, nil
}
