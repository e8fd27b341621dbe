package main

import (
	"context"
	"fmt"
	"time"

	"tweetgram/internal/models"

	"github.com/sirupsen/logrus"
)

// logTransports is the standalone stand-in for the external chat and social
// transports: posts and deliveries are logged, fetches return nothing. Real
// deployments replace this with clients for their platforms.
type logTransports struct {
	logger *logrus.Logger
}

func newLogTransports(logger *logrus.Logger) *logTransports {
	return &logTransports{logger: logger}
}

func (t *logTransports) CreatePost(_ context.Context, text string, mediaFiles []string) (*models.PostResult, error) {
	id := fmt.Sprintf("local_%d", time.Now().UnixNano())
	t.logger.WithFields(logrus.Fields{
		"post_id":     id,
		"text":        text,
		"media_count": len(mediaFiles),
	}).Info("Log transport: post created")
	return &models.PostResult{
		ID:   id,
		URL:  fmt.Sprintf("https://example.com/status/%s", id),
		Text: text,
	}, nil
}

func (t *logTransports) FetchInbound(_ context.Context, _ int) ([]models.InboundMessage, error) {
	return nil, nil
}

func (t *logTransports) DeliverToChat(_ context.Context, text string) error {
	t.logger.WithField("text", text).Info("Log transport: delivered to chat")
	return nil
}
