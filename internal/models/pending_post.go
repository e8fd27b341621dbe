package models

import (
	"fmt"
	"time"
)

// ConfirmationStatus represents the lifecycle state of a pending post
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusEditing   ConfirmationStatus = "editing"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusCancelled ConfirmationStatus = "cancelled"
	StatusExpired   ConfirmationStatus = "expired"
)

// PendingPost is one outbound post awaiting an explicit human decision.
// It lives only in memory; a process restart drops in-flight confirmations
// and the requester must resubmit.
type PendingPost struct {
	RequesterID     int64              `json:"requester_id"`
	ChatID          int64              `json:"chat_id"`
	OriginMessageID int64              `json:"origin_message_id"`
	Text            string             `json:"text"`
	MediaFiles      []string           `json:"media_files,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	ExpiresAt       time.Time          `json:"expires_at"`
	Status          ConfirmationStatus `json:"status"`
}

// Key returns the composite identity of the request. Two submissions with
// the same requester, chat and origin message share a key, so the later one
// supersedes the earlier.
func (p *PendingPost) Key() string {
	return ConfirmationKey(p.RequesterID, p.ChatID, p.OriginMessageID)
}

// ConfirmationKey builds the composite key for an in-flight request
func ConfirmationKey(requesterID, chatID, originMessageID int64) string {
	return fmt.Sprintf("%d_%d_%d", requesterID, chatID, originMessageID)
}

// RegistryStats summarizes the confirmation table
type RegistryStats struct {
	Total   int `json:"total_confirmations"`
	Pending int `json:"pending_confirmations"`
	Editing int `json:"editing_confirmations"`
}
