package domain

import "time"

type BadgeStatus string

const (
	BadgeActive   BadgeStatus = "active"
	BadgeInactive BadgeStatus = "inactive"
	BadgeRemoved  BadgeStatus = "removed"
)

// Badge is one pairing of a physical tag with a member. A tag with no
// pairing in a non-removed status is unpaired.
type Badge struct {
	ID            uint        `json:"id"`
	TagID         string      `json:"tag_id"`
	MemberID      uint        `json:"member_id"`
	AssociationID uint        `json:"association_id"`
	Status        BadgeStatus `json:"status"`
	PairedAt      time.Time   `json:"paired_at"`
	RemovedAt     *time.Time  `json:"removed_at,omitempty"`
}

func (b Badge) IsActive() bool {
	return b.Status == BadgeActive
}

// BadgeView is what readers and scan stations display.
type BadgeView struct {
	Badge   Badge        `json:"badge"`
	Member  Member       `json:"member"`
	Account BadgeAccount `json:"account"`
}
