package service

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"tweetgram/internal/constants"
	"tweetgram/internal/errors"
	"tweetgram/internal/models"
	"tweetgram/internal/privacy"
	"tweetgram/internal/security"

	"github.com/sirupsen/logrus"
)

// ConfirmationRegistry is the in-memory table of outbound posts awaiting a
// human decision. Entries are never persisted; a restart drops in-flight
// confirmations and the requester resubmits.
//
// All transitions on one key are linearized by the registry mutex: no two
// operations race a check-and-set on the same entry.
type ConfirmationRegistry struct {
	timeout       time.Duration
	sweepInterval time.Duration
	maxLength     int
	logger        *logrus.Logger

	mu      sync.Mutex
	pending map[string]*models.PendingPost

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConfirmationRegistry creates a registry. maxLength bounds the post text
// in characters; zero falls back to the platform limit.
func NewConfirmationRegistry(timeout, sweepInterval time.Duration, maxLength int, logger *logrus.Logger) *ConfirmationRegistry {
	if maxLength <= 0 {
		maxLength = constants.DefaultPostMaxLength
	}
	return &ConfirmationRegistry{
		timeout:       timeout,
		sweepInterval: sweepInterval,
		maxLength:     maxLength,
		logger:        logger,
		pending:       make(map[string]*models.PendingPost),
	}
}

// Create registers a new pending post and returns its key. A second create
// with the same composite identity overwrites the earlier entry: resubmitting
// the same message supersedes the prior request.
//
// Overlong text is rejected, never truncated.
func (r *ConfirmationRegistry) Create(requesterID, chatID, originMessageID int64, text string, mediaFiles []string) (string, error) {
	if length := utf8.RuneCountInString(text); length > r.maxLength {
		return "", errors.NewValidationError("text",
			fmt.Sprintf("post is %d characters, limit is %d", length, r.maxLength))
	}
	if len(mediaFiles) > constants.MaxMediaPerPost {
		return "", errors.NewValidationError("media",
			fmt.Sprintf("%d attachments, limit is %d", len(mediaFiles), constants.MaxMediaPerPost))
	}
	for _, file := range mediaFiles {
		if err := security.ValidateAttachmentPath(file); err != nil {
			return "", errors.NewValidationError("media", err.Error())
		}
	}

	now := time.Now()
	post := &models.PendingPost{
		RequesterID:     requesterID,
		ChatID:          chatID,
		OriginMessageID: originMessageID,
		Text:            text,
		MediaFiles:      append([]string(nil), mediaFiles...),
		CreatedAt:       now,
		ExpiresAt:       now.Add(r.timeout),
		Status:          models.StatusPending,
	}
	key := post.Key()

	r.mu.Lock()
	_, superseded := r.pending[key]
	r.pending[key] = post
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"key":        privacy.MaskConfirmationKey(key),
		"superseded": superseded,
	}).Info("Created confirmation request")
	return key, nil
}

// Get returns a snapshot of the entry, or nil if absent or evicted
func (r *ConfirmationRegistry) Get(key string) *models.PendingPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot(r.pending[key])
}

// IsExpired reports whether the entry's expiry has passed. An absent key is
// treated as expired.
func (r *ConfirmationRegistry) IsExpired(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.pending[key]
	if !ok {
		return true
	}
	return time.Now().After(post.ExpiresAt)
}

// Confirm transitions Pending → Confirmed and removes the entry, returning
// an immutable snapshot for execution. It returns nil if the entry is
// absent, expired, or not Pending — a confirm racing the expiry sweep loses
// deterministically and the caller reports the request as gone.
func (r *ConfirmationRegistry) Confirm(key string) *models.PendingPost {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.pending[key]
	if !ok {
		return nil
	}
	if time.Now().After(post.ExpiresAt) {
		post.Status = models.StatusExpired
		delete(r.pending, key)
		r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation refused, request already expired")
		return nil
	}
	if post.Status != models.StatusPending {
		return nil
	}

	post.Status = models.StatusConfirmed
	delete(r.pending, key)
	r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation accepted")
	return snapshot(post)
}

// SetEditing transitions Pending → Editing: the requester's next message is
// treated as replacement content rather than a new post.
func (r *ConfirmationRegistry) SetEditing(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.pending[key]
	if !ok || post.Status != models.StatusPending {
		return false
	}
	post.Status = models.StatusEditing
	r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation switched to editing")
	return true
}

// Resubmit replaces the content of an Editing entry and returns it to
// Pending with a fresh expiry. Overlong replacement text is rejected and the
// entry stays in Editing.
func (r *ConfirmationRegistry) Resubmit(key, text string, mediaFiles []string) error {
	if length := utf8.RuneCountInString(text); length > r.maxLength {
		return errors.NewValidationError("text",
			fmt.Sprintf("post is %d characters, limit is %d", length, r.maxLength))
	}
	for _, file := range mediaFiles {
		if err := security.ValidateAttachmentPath(file); err != nil {
			return errors.NewValidationError("media", err.Error())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.pending[key]
	if !ok {
		return errors.NewStateConflictError(key, "resubmit")
	}
	if post.Status != models.StatusEditing {
		return errors.NewStateConflictError(key, "resubmit")
	}

	post.Text = text
	post.MediaFiles = append([]string(nil), mediaFiles...)
	post.CreatedAt = time.Now()
	post.ExpiresAt = post.CreatedAt.Add(r.timeout)
	post.Status = models.StatusPending
	r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation content replaced, back to pending")
	return nil
}

// Cancel removes the entry from any non-terminal state. It reports whether
// an entry was actually removed.
func (r *ConfirmationRegistry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.pending[key]
	if !ok {
		return false
	}
	post.Status = models.StatusCancelled
	delete(r.pending, key)
	r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation cancelled")
	return true
}

// Stats summarizes the live table
func (r *ConfirmationRegistry) Stats() models.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := models.RegistryStats{Total: len(r.pending)}
	for _, post := range r.pending {
		switch post.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusEditing:
			stats.Editing++
		}
	}
	return stats
}

// Start launches the background expiry sweep. Starting twice is a no-op.
func (r *ConfirmationRegistry) Start(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		r.logger.Warn("Confirmation sweep already running")
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.sweepLoop(sweepCtx)

	r.logger.WithField("interval", r.sweepInterval).Info("Confirmation sweep started")
}

// Stop cancels the sweep and waits for it to exit
func (r *ConfirmationRegistry) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.running {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	r.logger.Info("Confirmation sweep stopped")
}

func (r *ConfirmationRegistry) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep expires Pending entries whose deadline has passed. It is the only
// writer that removes a Pending entry without a user action; Editing,
// Confirmed and Cancelled entries are removed synchronously by their own
// operations and are never touched here.
func (r *ConfirmationRegistry) sweep() {
	now := time.Now()

	r.mu.Lock()
	var expired []string
	for key, post := range r.pending {
		if post.Status == models.StatusPending && now.After(post.ExpiresAt) {
			post.Status = models.StatusExpired
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(r.pending, key)
	}
	r.mu.Unlock()

	for _, key := range expired {
		r.logger.WithField("key", privacy.MaskConfirmationKey(key)).Info("Confirmation request expired")
	}
}

func snapshot(post *models.PendingPost) *models.PendingPost {
	if post == nil {
		return nil
	}
	copied := *post
	copied.MediaFiles = append([]string(nil), post.MediaFiles...)
	return &copied
}
