package retentiontest

import (
	"context"
	"fmt"
	"sync"

	"recordkeeper-hq/keeper/pkg/retention/jobs"
)

// Submission records one job submitted to a JobBackend.
type Submission struct {
	Name    string
	Payload jobs.Payload
}

type jobHandle string

func (h jobHandle) ID() string { return string(h) }

// JobBackend is a jobs.Backend that records submissions and completes
// every job immediately.
type JobBackend struct {
	mu sync.Mutex

	// SubmitErr and AwaitErr, when set, are returned for every job.
	SubmitErr error
	AwaitErr  error

	submissions []Submission
}

// Submit implements jobs.Backend.
func (b *JobBackend) Submit(ctx context.Context, name string, p jobs.Payload) (jobs.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SubmitErr != nil {
		return nil, b.SubmitErr
	}
	b.submissions = append(b.submissions, Submission{Name: name, Payload: p})
	return jobHandle(fmt.Sprintf("job-%d", len(b.submissions))), nil
}

// Await implements jobs.Backend.
func (b *JobBackend) Await(ctx context.Context, h jobs.Handle) error {
	return b.AwaitErr
}

// Submissions returns the recorded submissions in order.
func (b *JobBackend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Submission(nil), b.submissions...)
}

var _ jobs.Backend = (*JobBackend)(nil)
