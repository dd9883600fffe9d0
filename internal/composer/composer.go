// Package composer owns the lifecycle of a draft post: image selection and
// preview, validation, optimistic reset and hand-off to the creation operation.
package composer

import (
	"context"
	"sync"
	"time"

	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/util"
	"github.com/rs/zerolog"
)

var composerLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	composerLogger = l
}

type SessionID string

// CreationOperation durably records a new post.
type CreationOperation interface {
	CreatePost(ctx context.Context, payload model.PostPayload) (*model.Post, error)
}

type CreationOperationFunc func(ctx context.Context, payload model.PostPayload) (*model.Post, error)

func (f CreationOperationFunc) CreatePost(ctx context.Context, payload model.PostPayload) (*model.Post, error) {
	return f(ctx, payload)
}

type Event string

const (
	EventSubmissionSucceeded Event = "submission-succeeded"
	EventSubmissionFailed    Event = "submission-failed"
)

type Options struct {
	// GuardDoubleSubmit refuses a submission while another one is in flight.
	GuardDoubleSubmit bool
	SubmitTimeout     time.Duration
	// MaxImageBytes of zero disables the size check.
	MaxImageBytes int
}

// State is a read-only view of the composer surface.
type State struct {
	ImageName  string
	PreviewURL PreviewURL
	Submitting bool
	LastError  error
	CanRestore bool
}

func (s State) HasImage() bool {
	return s.PreviewURL != ""
}

type Composer struct {
	id       SessionID
	previews *PreviewStore
	create   CreationOperation
	opts     Options
	notify   func(SessionID, Event)
	// inflight, when set, counts submissions whose creation operation has not resolved.
	inflight *sync.WaitGroup

	mu          sync.Mutex
	image       *model.Image
	preview     PreviewURL
	pending     int
	recoverable *model.PostPayload
	lastErr     error
	lastActive  time.Time
}

func New(id SessionID, previews *PreviewStore, create CreationOperation, opts Options) *Composer {
	return &Composer{
		id:         id,
		previews:   previews,
		create:     create,
		opts:       opts,
		lastActive: time.Now(),
	}
}

func (c *Composer) ID() SessionID {
	return c.id
}

// SetResultNotifier sets a function that will be called when a submission resolves.
func (c *Composer) SetResultNotifier(notifier func(SessionID, Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = notifier
}

// SelectImage replaces the current image. The previous preview is revoked
// before the new one is issued. A nil or empty file is a dismissed dialog.
func (c *Composer) SelectImage(img *model.Image) error {
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	if !img.IsImage() {
		return ErrUnsupportedImage
	}
	if c.opts.MaxImageBytes > 0 && img.Size() > c.opts.MaxImageBytes {
		return ErrImageTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.releaseImage()
	c.image = img
	c.preview = c.previews.Create(img)

	composerLogger.Debug().
		Str("session_id", string(c.id)).
		Str("image", img.Name).
		Int("size", img.Size()).
		Msg("Image selected")
	return nil
}

// RemoveImage clears the image and revokes its preview. Idempotent.
func (c *Composer) RemoveImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.releaseImage()
}

// Submit validates text, clears the surface and hands a snapshot of the
// draft to the creation operation. It returns before the operation resolves.
func (c *Composer) Submit(ctx context.Context, text string) (*Submission, error) {
	return c.SubmitAdmitted(ctx, text, nil)
}

// SubmitAdmitted is Submit with an admission check, consulted only once the
// draft would otherwise be accepted. A refusal returns ErrRateLimited and
// leaves the surface as is.
func (c *Composer) SubmitAdmitted(ctx context.Context, text string, admit func() bool) (*Submission, error) {
	c.mu.Lock()
	c.touch()

	if c.opts.GuardDoubleSubmit && c.pending > 0 {
		c.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}

	if util.IsBlank(text) {
		c.mu.Unlock()
		return nil, &ValidationError{Reason: "empty text"}
	}

	if admit != nil && !admit() {
		c.mu.Unlock()
		return nil, ErrRateLimited
	}

	sub := newSubmission(model.PostPayload{Text: text, Image: c.image})

	// Optimistic clear: the surface is empty before the operation resolves.
	c.releaseImage()
	c.lastErr = nil
	c.pending++
	if c.inflight != nil {
		c.inflight.Add(1)
	}
	c.mu.Unlock()

	composerLogger.Info().
		Str("session_id", string(c.id)).
		Str("submission_id", sub.ID).
		Bool("has_image", sub.Payload.HasImage()).
		Msg("Submitting post")

	go c.run(ctx, sub)
	return sub, nil
}

func (c *Composer) run(parent context.Context, sub *Submission) {
	if c.inflight != nil {
		defer c.inflight.Done()
	}

	ctx := context.WithoutCancel(parent)
	if c.opts.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.SubmitTimeout)
		defer cancel()
	}

	post, err := c.create.CreatePost(ctx, sub.Payload)

	event := EventSubmissionSucceeded
	c.mu.Lock()
	c.pending--
	if err != nil {
		err = &SubmissionError{SubmissionID: sub.ID, Err: err}
		event = EventSubmissionFailed
		c.lastErr = err
		payload := sub.Payload
		c.recoverable = &payload
	} else {
		c.recoverable = nil
	}
	notify := c.notify
	c.mu.Unlock()

	if err != nil {
		composerLogger.Error().Err(err).
			Str("session_id", string(c.id)).
			Str("submission_id", sub.ID).
			Msg("Error creating post")
	} else {
		l := composerLogger.Info().
			Str("session_id", string(c.id)).
			Str("submission_id", sub.ID)
		if post != nil {
			l = l.Str("post_id", string(post.ID))
		}
		l.Msg("Post created")
	}

	sub.finish(post, err)

	if notify != nil {
		notify(c.id, event)
	}
}

// Restore puts the last failed draft back on the surface and returns its
// text. Any image currently selected is replaced by the failed draft's image.
func (c *Composer) Restore() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.recoverable == nil {
		return "", false
	}
	draft := c.recoverable
	c.recoverable = nil
	c.lastErr = nil

	if draft.Image != nil {
		c.releaseImage()
		c.image = draft.Image
		c.preview = c.previews.Create(draft.Image)
	}
	return draft.Text, true
}

func (c *Composer) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		PreviewURL: c.preview,
		Submitting: c.pending > 0,
		LastError:  c.lastErr,
		CanRestore: c.recoverable != nil,
	}
	if c.image != nil {
		s.ImageName = c.image.Name
	}
	return s
}

// Close releases the preview. In-flight submissions still resolve.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseImage()
	c.recoverable = nil
}

func (c *Composer) idleSince(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActive), c.pending > 0
}

// must hold c.mu
func (c *Composer) touch() {
	c.lastActive = time.Now()
}

// must hold c.mu
func (c *Composer) releaseImage() {
	if c.preview != "" {
		c.previews.Revoke(c.preview)
	}
	c.image = nil
	c.preview = ""
}
