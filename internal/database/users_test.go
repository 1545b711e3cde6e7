package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGetUserByUsername(t *testing.T) {
	userID := createTestUserForNodes(t, "lookup_user")

	user, err := testStore.GetUserByUsername(context.Background(), "lookup_user")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, userID, user.ID)
	require.Equal(t, "lookup_user", user.Username)

	missing, err := testStore.GetUserByUsername(context.Background(), "nobody_here")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateUserStorage(t *testing.T) {
	userID := createTestUserForNodes(t, "storage_user")

	require.NoError(t, testStore.UpdateUserStorage(context.Background(), userID, 2048))
	user, err := testStore.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(2048), user.StorageUsedBytes)

	require.NoError(t, testStore.UpdateUserStorage(context.Background(), userID, -1024))
	user, err = testStore.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(1024), user.StorageUsedBytes)
}

func TestSessionRoundTrip(t *testing.T) {
	userID := createTestUserForNodes(t, "session_user")

	params := CreateSessionParams{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: "refresh-token-round-trip",
		UserAgent:    "test-agent",
		ClientIP:     "127.0.0.1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, testStore.CreateSession(context.Background(), params))

	user, err := testStore.GetUserByRefreshToken(context.Background(), params.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, userID, user.ID)

	require.NoError(t, testStore.DeleteSessionByRefreshToken(context.Background(), params.RefreshToken))

	user, err = testStore.GetUserByRefreshToken(context.Background(), params.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestExpiredSessionIsRejected(t *testing.T) {
	userID := createTestUserForNodes(t, "expired_session_user")

	params := CreateSessionParams{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: "refresh-token-expired",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, testStore.CreateSession(context.Background(), params))

	user, err := testStore.GetUserByRefreshToken(context.Background(), params.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestEventJournal(t *testing.T) {
	userID := createTestUserForNodes(t, "event_user")

	require.NoError(t, testStore.LogEvent(context.Background(), userID, "node_created", map[string]string{"id": "abc"}))
	require.NoError(t, testStore.LogEvent(context.Background(), userID, "node_trashed", map[string]string{"id": "abc"}))

	events, err := testStore.GetEventsSince(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "node_created", events[0].EventType)
	require.Equal(t, "node_trashed", events[1].EventType)

	later, err := testStore.GetEventsSince(context.Background(), userID, events[0].ID)
	require.NoError(t, err)
	require.Len(t, later, 1)
	require.Equal(t, events[1].ID, later[0].ID)
}
