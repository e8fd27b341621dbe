package service

import (
	"context"
	"fmt"
	"time"

	"tweetgram/internal/errors"
	"tweetgram/internal/metrics"
	"tweetgram/internal/models"
	"tweetgram/internal/privacy"
	"tweetgram/internal/resilience"
	"tweetgram/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// PostClient executes one outbound post against the social platform
type PostClient interface {
	CreatePost(ctx context.Context, text string, mediaFiles []string) (*models.PostResult, error)
}

// RelayService is the workflow surface exposed to the bot's command layer:
// it gates outbound posts behind the confirmation registry and executes
// confirmed posts through the resilient caller.
type RelayService struct {
	confirmations *ConfirmationRegistry
	caller        *resilience.Caller
	posts         PostClient
	logger        *logrus.Logger
	registry      *metrics.Registry

	authorizedUserID int64
	dryRun           bool
}

// NewRelayService creates the relay workflow service
func NewRelayService(confirmations *ConfirmationRegistry, caller *resilience.Caller, posts PostClient, authorizedUserID int64, dryRun bool, logger *logrus.Logger, registry *metrics.Registry) *RelayService {
	return &RelayService{
		confirmations:    confirmations,
		caller:           caller,
		posts:            posts,
		logger:           logger,
		registry:         registry,
		authorizedUserID: authorizedUserID,
		dryRun:           dryRun,
	}
}

// CreateConfirmation validates the submission and registers it for human
// confirmation, returning the confirmation key.
func (s *RelayService) CreateConfirmation(requesterID, chatID, originMessageID int64, text string, mediaFiles []string) (string, error) {
	if err := s.authorize(requesterID); err != nil {
		return "", err
	}
	return s.confirmations.Create(requesterID, chatID, originMessageID, text, mediaFiles)
}

// Confirm executes the pending post identified by key. A key that is
// absent, expired or not Pending yields a StateConflict outcome: the request
// is reported gone, never silently posted.
func (s *RelayService) Confirm(ctx context.Context, key string) (*models.PostResult, error) {
	post := s.confirmations.Confirm(key)
	if post == nil {
		return nil, errors.NewStateConflictError(key, "confirm")
	}

	spanCtx, span := tracing.StartSpan(ctx, "relay.execute_post",
		attribute.String("confirmation_key", privacy.MaskConfirmationKey(key)),
		attribute.Int("media_count", len(post.MediaFiles)),
	)
	defer span.End()

	if s.dryRun {
		s.logger.WithFields(logrus.Fields{
			"key":  privacy.MaskConfirmationKey(key),
			"text": post.Text,
		}).Info("Dry-run mode, post not sent")
		return &models.PostResult{
			ID:     fmt.Sprintf("dry_run_%d", time.Now().Unix()),
			Text:   post.Text,
			DryRun: true,
		}, nil
	}

	result, err := s.caller.Call(spanCtx, "create_post", nil, func(ctx context.Context) (interface{}, error) {
		return s.posts.CreatePost(ctx, post.Text, post.MediaFiles)
	})
	if err != nil {
		tracing.RecordError(spanCtx, err)
		s.count("posts_failed")
		s.logger.WithFields(logrus.Fields{
			"key":   privacy.MaskConfirmationKey(key),
			"error": err,
		}).Error("Confirmed post failed to execute")
		return nil, err
	}

	postResult, ok := result.(*models.PostResult)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternalError, "post client returned unexpected result type")
	}

	s.count("posts_published")
	s.logger.WithFields(logrus.Fields{
		"key":     privacy.MaskConfirmationKey(key),
		"post_id": postResult.ID,
	}).Info("Post published")
	return postResult, nil
}

// Cancel removes the pending post. It reports whether anything was removed.
func (s *RelayService) Cancel(key string) bool {
	return s.confirmations.Cancel(key)
}

// SetEditing marks the pending post as awaiting replacement content
func (s *RelayService) SetEditing(key string) bool {
	return s.confirmations.SetEditing(key)
}

// Resubmit replaces the content of a post in Editing and re-pends it
func (s *RelayService) Resubmit(key, text string, mediaFiles []string) error {
	return s.confirmations.Resubmit(key, text, mediaFiles)
}

// GetConfirmation returns a snapshot of the pending post, nil if gone
func (s *RelayService) GetConfirmation(key string) *models.PendingPost {
	return s.confirmations.Get(key)
}

// RegistryStats summarizes the confirmation table
func (s *RelayService) RegistryStats() models.RegistryStats {
	return s.confirmations.Stats()
}

func (s *RelayService) authorize(requesterID int64) error {
	if requesterID != s.authorizedUserID {
		s.count("authorization_denials")
		s.logger.WithField("requester_id", privacy.MaskID(requesterID)).Warn("Rejected submission from unauthorized requester")
		return errors.NewAuthorizationError(requesterID)
	}
	return nil
}

func (s *RelayService) count(name string) {
	if s.registry != nil {
		s.registry.IncrementCounter(name, nil)
	}
}
