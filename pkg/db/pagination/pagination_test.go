package pagination

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1234567890", CreatedAt: "2026-03-01T09:00:00Z"})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	cursor, err := DecodeCursor(token)
	assert.NoError(t, err)
	assert.Equal(t, "1234567890", cursor.ID)
	assert.Equal(t, "2026-03-01T09:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursorRejectsEmptyToken(t *testing.T) {
	_, err := DecodeCursor("")
	assert.ErrorIs(t, err, errEmptyToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%not-base64%%")
	assert.Error(t, err)

	// Valid base64 that does not hold a cursor payload.
	_, err = DecodeCursor("bm90LWpzb24")
	assert.Error(t, err)
}

type pagedRow struct {
	ID string
}

func TestBuildCursorPageInfo(t *testing.T) {
	tokenFor := func(r *pagedRow) string { return r.ID }

	t.Run("empty result", func(t *testing.T) {
		info := BuildCursorPageInfo(nil, 10, tokenFor)
		assert.False(t, info.HasMore)
		assert.Empty(t, info.NextPageToken)
	})

	t.Run("partial page", func(t *testing.T) {
		rows := []*pagedRow{{ID: "a"}, {ID: "b"}}
		info := BuildCursorPageInfo(rows, 10, tokenFor)
		assert.False(t, info.HasMore)
		assert.Equal(t, "b", info.NextPageToken)
	})

	t.Run("sentinel row signals more", func(t *testing.T) {
		rows := make([]*pagedRow, 0, 11)
		for i := 0; i < 11; i++ {
			rows = append(rows, &pagedRow{ID: fmt.Sprintf("row-%02d", i)})
		}
		info := BuildCursorPageInfo(rows, 10, tokenFor)
		assert.True(t, info.HasMore)
		assert.Equal(t, "row-09", info.NextPageToken, "token must come from the last kept row, not the sentinel")
	})
}
