// Package pagination implements keyset paging over snowflake-keyed tables.
// Page tokens are opaque to callers: a base64url blob carrying the last row
// of the previous page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Pagination is the request half of a paged listing.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50" validate:"gte=1,lte=250"`
}

// Cursor pins a position in created-at order; the id breaks ties between
// rows stamped in the same instant.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PageInfo is the response half of a paged listing.
type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

var errEmptyToken = errors.New("empty page token")

func EncodeCursor(cursor Cursor) (string, error) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, errEmptyToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildCursorPageInfo derives the next-page token from a result fetched
// with limit+1 rows. The caller trims the sentinel row when HasMore is set.
func BuildCursorPageInfo[T any](rows []*T, limit int32, tokenFor func(*T) string) *PageInfo {
	if len(rows) == 0 {
		return &PageInfo{}
	}

	hasMore := len(rows) > int(limit)
	if hasMore {
		rows = rows[:limit]
	}
	return &PageInfo{
		HasMore:       hasMore,
		NextPageToken: tokenFor(rows[len(rows)-1]),
	}
}
