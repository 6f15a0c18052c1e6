package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPageToken wraps every token decode failure so callers can tell
// a bad cursor apart from backend errors.
var ErrMalformedPageToken = errors.New("malformed page token")

// MaxPageLimit caps the page size a single query may request, whether the
// size came from a pageSize parameter or from a decoded token.
const MaxPageLimit = 200

// PageToken is the pagination cursor exchanged with clients as an opaque
// string. Queries fetch Limit+1 rows; the extra row only signals that another
// page exists and is never returned.
type PageToken struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (t PageToken) Encode() string {
	raw, _ := json.Marshal(t)
	return base64.URLEncoding.EncodeToString(raw)
}

func DecodePageToken(s string) (PageToken, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return PageToken{}, fmt.Errorf("%w: %v", ErrMalformedPageToken, err)
	}
	var token PageToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return PageToken{}, fmt.Errorf("%w: %v", ErrMalformedPageToken, err)
	}
	if token.Limit <= 0 || token.Offset < 0 {
		return PageToken{}, fmt.Errorf("%w: limit=%d offset=%d", ErrMalformedPageToken, token.Limit, token.Offset)
	}
	// tokens are opaque but not trusted; a crafted one cannot request an
	// oversized page
	if token.Limit > MaxPageLimit {
		token.Limit = MaxPageLimit
	}
	return token, nil
}

// QueryLimit is the row count to request from the database: one more than
// the visible page size, as a more-data sentinel.
func (t PageToken) QueryLimit() int {
	return t.Limit + 1
}

// NextPage trims the sentinel row when present and returns the continuation
// token, or nil at end of data. The slice is modified in place.
func NextPage[T any](token PageToken, rows *[]T) *PageToken {
	if len(*rows) <= token.Limit {
		return nil
	}
	*rows = (*rows)[:token.Limit]
	next := PageToken{Limit: token.Limit, Offset: token.Offset + token.Limit}
	return &next
}
