package data

import "time"

// Stat is the status record produced for an object. Mode carries the
// variant tag in its type bits; UID and GID are always zero since
// ownership is not implemented.
type Stat struct {
	ID        uint64    `json:"id"`
	Mode      FileMode  `json:"mode"`
	Rdev      uint64    `json:"rdev"`
	LinkCount int       `json:"link_count"`
	UID       int       `json:"uid"`
	GID       int       `json:"gid"`
	Size      int64     `json:"size"`
	BlockSize int64     `json:"block_size"`
	Blocks    int64     `json:"blocks"`

	AccessTime time.Time `json:"access_time"`
	ModifyTime time.Time `json:"modify_time"`
	ChangeTime time.Time `json:"change_time"`
}
