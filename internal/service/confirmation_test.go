package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"tweetgram/internal/errors"
	"tweetgram/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestRegistry(timeout time.Duration) *ConfirmationRegistry {
	return NewConfirmationRegistry(timeout, time.Minute, 280, testLogger())
}

func TestConfirmationRegistry_CreateAndGet(t *testing.T) {
	registry := newTestRegistry(5 * time.Minute)

	key, err := registry.Create(1, 2, 3, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "1_2_3", key)

	post := registry.Get(key)
	require.NotNil(t, post)
	assert.Equal(t, "hello", post.Text)
	assert.Equal(t, models.StatusPending, post.Status)
	assert.Equal(t, post.CreatedAt.Add(5*time.Minute), post.ExpiresAt)
}

func TestConfirmationRegistry_CreateRejectsOverlongText(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	_, err := registry.Create(1, 2, 3, strings.Repeat("a", 281), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
	assert.Nil(t, registry.Get("1_2_3"))
}

func TestConfirmationRegistry_CreateCountsRunesNotBytes(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	// 280 multi-byte characters are within the limit
	_, err := registry.Create(1, 2, 3, strings.Repeat("ü", 280), nil)
	assert.NoError(t, err)
}

func TestConfirmationRegistry_CreateRejectsTooManyAttachments(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	media := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	_, err := registry.Create(1, 2, 3, "hello", media)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestConfirmationRegistry_CreateRejectsTraversalAttachmentPath(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	_, err := registry.Create(1, 2, 3, "hello", []string{"../../etc/passwd"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestConfirmationRegistry_CreateOverwritesSameIdentity(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key1, err := registry.Create(1, 2, 3, "first", nil)
	require.NoError(t, err)
	key2, err := registry.Create(1, 2, 3, "second", nil)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	post := registry.Get(key1)
	require.NotNil(t, post)
	assert.Equal(t, "second", post.Text)
	assert.Equal(t, 1, registry.Stats().Total)
}

func TestConfirmationRegistry_Confirm(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "hello", nil)
	require.NoError(t, err)

	post := registry.Confirm(key)
	require.NotNil(t, post)
	assert.Equal(t, models.StatusConfirmed, post.Status)

	// Terminal: the entry is gone and a second confirm loses
	assert.Nil(t, registry.Get(key))
	assert.Nil(t, registry.Confirm(key))
}

func TestConfirmationRegistry_ConfirmAbsentKey(t *testing.T) {
	registry := newTestRegistry(time.Minute)
	assert.Nil(t, registry.Confirm("9_9_9"))
}

func TestConfirmationRegistry_ConfirmExpiredLosesDeterministically(t *testing.T) {
	registry := newTestRegistry(10 * time.Millisecond)

	key, err := registry.Create(1, 2, 3, "hello", nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.True(t, registry.IsExpired(key))

	assert.Nil(t, registry.Confirm(key))
	assert.Nil(t, registry.Get(key))
}

func TestConfirmationRegistry_IsExpiredAbsentKey(t *testing.T) {
	registry := newTestRegistry(time.Minute)
	assert.True(t, registry.IsExpired("missing"))
}

func TestConfirmationRegistry_EditingFlow(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "draft", nil)
	require.NoError(t, err)

	require.True(t, registry.SetEditing(key))
	post := registry.Get(key)
	require.NotNil(t, post)
	assert.Equal(t, models.StatusEditing, post.Status)

	// Confirm is only valid from Pending
	assert.Nil(t, registry.Confirm(key))

	// Resubmission replaces content and re-pends with a fresh expiry
	before := post.ExpiresAt
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, registry.Resubmit(key, "final", []string{"pic.jpg"}))

	post = registry.Get(key)
	require.NotNil(t, post)
	assert.Equal(t, models.StatusPending, post.Status)
	assert.Equal(t, "final", post.Text)
	assert.Equal(t, []string{"pic.jpg"}, post.MediaFiles)
	assert.True(t, post.ExpiresAt.After(before))
}

func TestConfirmationRegistry_SetEditingInvalidStates(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	assert.False(t, registry.SetEditing("missing"))

	key, err := registry.Create(1, 2, 3, "draft", nil)
	require.NoError(t, err)
	require.True(t, registry.SetEditing(key))
	// Editing → Editing is not a valid transition
	assert.False(t, registry.SetEditing(key))
}

func TestConfirmationRegistry_ResubmitRequiresEditing(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "draft", nil)
	require.NoError(t, err)

	err = registry.Resubmit(key, "replacement", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStateConflict, errors.GetCode(err))

	err = registry.Resubmit("missing", "replacement", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStateConflict, errors.GetCode(err))
}

func TestConfirmationRegistry_ResubmitRejectsOverlongText(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "draft", nil)
	require.NoError(t, err)
	require.True(t, registry.SetEditing(key))

	err = registry.Resubmit(key, strings.Repeat("a", 281), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))

	// Entry is untouched and still in Editing
	post := registry.Get(key)
	require.NotNil(t, post)
	assert.Equal(t, models.StatusEditing, post.Status)
	assert.Equal(t, "draft", post.Text)
}

func TestConfirmationRegistry_Cancel(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "hello", nil)
	require.NoError(t, err)

	assert.True(t, registry.Cancel(key))
	assert.Nil(t, registry.Get(key))
	assert.False(t, registry.Cancel(key))
}

func TestConfirmationRegistry_CancelFromEditing(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	key, err := registry.Create(1, 2, 3, "hello", nil)
	require.NoError(t, err)
	require.True(t, registry.SetEditing(key))

	assert.True(t, registry.Cancel(key))
	assert.Nil(t, registry.Get(key))
}

func TestConfirmationRegistry_Stats(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	_, err := registry.Create(1, 2, 3, "one", nil)
	require.NoError(t, err)
	key2, err := registry.Create(1, 2, 4, "two", nil)
	require.NoError(t, err)
	require.True(t, registry.SetEditing(key2))

	stats := registry.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Editing)
}

func TestConfirmationRegistry_SweepExpiresPendingOnly(t *testing.T) {
	registry := NewConfirmationRegistry(30*time.Millisecond, 20*time.Millisecond, 280, testLogger())

	pendingKey, err := registry.Create(1, 2, 3, "pending", nil)
	require.NoError(t, err)
	editingKey, err := registry.Create(1, 2, 4, "editing", nil)
	require.NoError(t, err)
	require.True(t, registry.SetEditing(editingKey))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.Start(ctx)
	defer registry.Stop()

	require.Eventually(t, func() bool {
		return registry.Get(pendingKey) == nil
	}, time.Second, 10*time.Millisecond, "sweep should remove the expired pending entry")

	// The sweep never touches Editing entries
	post := registry.Get(editingKey)
	require.NotNil(t, post)
	assert.Equal(t, models.StatusEditing, post.Status)

	assert.Nil(t, registry.Confirm(pendingKey))
}

func TestConfirmationRegistry_SweepDoesNotRemoveBeforeExpiry(t *testing.T) {
	registry := NewConfirmationRegistry(time.Minute, 10*time.Millisecond, 280, testLogger())

	key, err := registry.Create(1, 2, 3, "fresh", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.Start(ctx)
	defer registry.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.NotNil(t, registry.Get(key))
}

func TestConfirmationRegistry_StartTwiceIsNoOp(t *testing.T) {
	registry := newTestRegistry(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.Start(ctx)
	registry.Start(ctx)
	registry.Stop()
	registry.Stop()
}
