package notifications

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/internal/testdb"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

func TestStoreSinkPersistsMessage(t *testing.T) {
	conn := testdb.Open(t)
	sink, err := NewStoreSink(NewRepository(conn))
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, sink.Send(context.Background(), Message{
		UserID:   userID,
		Category: enums.NotificationCategoryPenalty,
		Title:    "Penalty point",
		Body:     "You received a penalty point",
		Link:     "/producer/penalties",
	}))

	var stored models.Notification
	require.NoError(t, conn.Where("user_id = ?", userID).First(&stored).Error)
	assert.Equal(t, enums.NotificationCategoryPenalty, stored.Category)
	require.NotNil(t, stored.Link)
	assert.Equal(t, "/producer/penalties", *stored.Link)
}

func TestBestEffortSwallowsFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	recorder := &Recorder{}
	recorder.FailWith(errors.New("smtp down"))

	delivery, err := NewBestEffort(recorder, logg)
	require.NoError(t, err)

	sent := delivery.Deliver(context.Background(), Message{UserID: uuid.New(), Category: enums.NotificationCategoryOrder})
	assert.Zero(t, sent)
	assert.Contains(t, buf.String(), "notification delivery failed")
}

func TestBestEffortDeliversAll(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	recorder := &Recorder{}
	delivery, err := NewBestEffort(recorder, logg)
	require.NoError(t, err)

	buyer, seller := uuid.New(), uuid.New()
	sent := delivery.Deliver(context.Background(),
		Message{UserID: buyer, Category: enums.NotificationCategoryOrder},
		Message{UserID: seller, Category: enums.NotificationCategoryOrder},
	)
	assert.Equal(t, 2, sent)
	assert.Len(t, recorder.ForUser(buyer), 1)
	assert.Len(t, recorder.Messages(), 2)
}

func TestQueueNilSafe(t *testing.T) {
	var q *Queue
	q.Add(Message{Title: "ignored"})
	assert.Nil(t, q.Messages())

	q = &Queue{}
	q.Add(Message{Title: "kept"})
	require.Len(t, q.Messages(), 1)
	q.Reset()
	assert.Empty(t, q.Messages())
}
