package models

import (
	"encoding/json"
	"time"
)

// Project is a saved drawing. Content is the JSON line data as sent by the
// client; Preview is either an inline data URL or an object-storage key,
// depending on the configured preview store.
type Project struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Content   json.RawMessage `json:"content"`
	Preview   string          `json:"preview"`
	UpdatedAt time.Time       `json:"updated_at"`
	CreatedAt time.Time       `json:"created_at"`
}
