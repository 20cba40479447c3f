package ai

import "context"

type learnerKey struct{}

// WithLearner tags ctx with the learner a generation request is made for.
func WithLearner(ctx context.Context, learnerID string) context.Context {
	return context.WithValue(ctx, learnerKey{}, learnerID)
}

// LearnerFrom returns the learner set by WithLearner.
func LearnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(learnerKey{}).(string)
	return id, ok && id != ""
}
