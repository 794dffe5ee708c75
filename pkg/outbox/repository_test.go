package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

func TestErrorMessageKeepsRunesWhole(t *testing.T) {
	// "ñ" straddles the byte cap.
	cause := errors.New(strings.Repeat("x", maxErrorBytes-1) + "ñ tail")

	msg := errorMessage(cause)
	require.NotNil(t, msg)
	assert.True(t, utf8.ValidString(*msg))
	assert.LessOrEqual(t, len(*msg), maxErrorBytes)
	assert.Equal(t, strings.Repeat("x", maxErrorBytes-1), *msg)
	assert.Nil(t, errorMessage(nil))
}

func TestMarkRetryStoresTruncatedError(t *testing.T) {
	svc, conn := newTestService(t)
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventGiftActivated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		Status:        enums.OutboxStatusPending,
		NextAttemptAt: svc.now(),
	}
	require.NoError(t, conn.Create(&row).Error)

	cause := errors.New(strings.Repeat("é", maxErrorBytes))
	next := svc.now().Add(time.Minute)
	require.NoError(t, svc.repo.MarkRetry(conn, row.ID, 1, next, cause))

	stored, err := svc.repo.FindByID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ErrorMessage)
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))
	assert.Equal(t, maxErrorBytes, len(*stored.ErrorMessage))
	assert.Equal(t, 1, stored.AttemptCount)
}
