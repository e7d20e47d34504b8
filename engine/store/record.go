package store

import (
	"encoding/json"
	"time"

	"github.com/mwantia/flashfs/data"
)

// Record is the persisted form of one graph object. ParentID is zero
// for the root; EquivalentID is set only for hardlinks and Alias only
// for symlinks.
type Record struct {
	ID           uint64          `json:"id"`
	ParentID     uint64          `json:"parent_id"`
	Name         string          `json:"name"`
	Type         data.ObjectType `json:"type"`
	Mode         data.FileMode   `json:"mode"`
	Rdev         uint64          `json:"rdev,omitempty"`
	Length       int64           `json:"length"`
	Alias        string          `json:"alias,omitempty"`
	EquivalentID uint64          `json:"equivalent_id,omitempty"`

	AccessTime time.Time `json:"access_time"`
	ModifyTime time.Time `json:"modify_time"`
	ChangeTime time.Time `json:"change_time"`
}

// Marshal provides JSON serialization for KV-style stores.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal provides JSON deserialization for KV-style stores.
func (r *Record) Unmarshal(buf []byte) error {
	return json.Unmarshal(buf, r)
}
