package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestCursorEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("MSK", 3*3600))
	id := uuid.New()

	decoded, err := Decode(Cursor{CreatedAt: at, ID: id}.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, id, decoded.ID)
	assert.True(t, decoded.CreatedAt.Equal(at))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, token := range []string{"%%%", "bm9kb3Q", "YWJjLm5vdC1hLXV1aWQ"} {
		_, err := Decode(token)
		assert.Error(t, err, token)
	}
}

func TestTrim(t *testing.T) {
	key := func(n int) Cursor { return Cursor{ID: uuid.NewSHA1(uuid.Nil, []byte{byte(n)})} }

	rows, next := Trim([]int{1, 2, 3}, 2, key)
	assert.Equal(t, []int{1, 2}, rows)
	require.NotNil(t, next)
	assert.Equal(t, key(2).ID, next.ID)

	rows, next = Trim([]int{1, 2}, 2, key)
	assert.Equal(t, []int{1, 2}, rows)
	assert.Nil(t, next)
}
