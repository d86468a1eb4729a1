package application

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// cursor marks where the previous page stopped in the ranked candidate
// ordering. LastID is the last admitted item and anchors resumption when
// positions shift between pages; Offset is the input position just past it,
// used only when the item is no longer present; Sort guards against a
// cursor being replayed under a different ordering.
type cursor struct {
	Offset int                 `json:"o"`
	LastID string              `json:"id"`
	Sort   persistence.SortKey `json:"s"`
}

func encodeCursor(c cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(raw string, sort persistence.SortKey) (cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	if c.Offset < 0 {
		return cursor{}, fmt.Errorf("%w: negative offset", ErrBadCursor)
	}
	if c.Sort != sort {
		return cursor{}, fmt.Errorf("%w: cursor was issued for sort %q", ErrBadCursor, c.Sort)
	}
	return c, nil
}
