package composer

import (
	"context"

	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/google/uuid"
)

// Submission tracks one call to the creation operation. Payload is the value
// snapshot taken when the draft was submitted; later edits never reach it.
type Submission struct {
	ID      string
	Payload model.PostPayload

	done chan struct{}
	post *model.Post
	err  error
}

func newSubmission(payload model.PostPayload) *Submission {
	return &Submission{
		ID:      uuid.NewString(),
		Payload: payload,
		done:    make(chan struct{}),
	}
}

func (s *Submission) finish(post *model.Post, err error) {
	s.post = post
	s.err = err
	close(s.done)
}

// Done is closed once the creation operation has resolved.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome. Only meaningful after Done is closed.
func (s *Submission) Result() (*model.Post, error) {
	return s.post, s.err
}

func (s *Submission) Wait(ctx context.Context) (*model.Post, error) {
	select {
	case <-s.done:
		return s.post, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
