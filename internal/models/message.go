package models

import "time"

// MediaRef describes one media attachment on an inbound message
type MediaRef struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// InboundMessage is one private message fetched from the social platform
type InboundMessage struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name,omitempty"`
	Username   string     `json:"username,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Media      []MediaRef `json:"media,omitempty"`
}

// PostResult is the outcome of a successfully executed post
type PostResult struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Text   string `json:"text"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// PollerStatus reports the inbound poller's current state
type PollerStatus struct {
	Running         bool      `json:"running"`
	Enabled         bool      `json:"enabled"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	ProcessedCount  int       `json:"processed_count"`
	LastCheck       time.Time `json:"last_check"`
}

// DedupStats reports the durable processed-message store's state
type DedupStats struct {
	TotalProcessed int    `json:"total_processed"`
	Backend        string `json:"backend"`
	Path           string `json:"path"`
	MaxAgeDays     int    `json:"max_age_days"`
}
