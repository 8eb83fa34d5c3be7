package model

import (
	"fmt"
	"time"

	"activity-booking-backend/internal/duration"
)

// ActivityState is the lifecycle state of an activity proposal.
type ActivityState string

const (
	ActivityPreview  ActivityState = "preview"
	ActivityProposed ActivityState = "proposed"
	ActivityAccepted ActivityState = "accepted"
	ActivityDenied   ActivityState = "denied"
	ActivityArchived ActivityState = "archived"
)

// Activity is a proposal for recurring content (e.g. "Pottery class"),
// owned by the user that submitted it. It is offered through occasions,
// one or more per period.
type Activity struct {
	ID       uint          `gorm:"primaryKey"`
	Title    string        `gorm:"size:256;not null"`
	Username string        `gorm:"size:128;not null;index"`
	State    ActivityState `gorm:"size:16;not null;default:preview"`

	// OR-combination of the duration categories of all occasions,
	// maintained by the store whenever occasion dates change.
	Durations duration.Days `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Tags      []Tag      `gorm:"many2many:activity_tags;"`
	Occasions []Occasion `gorm:"foreignKey:ActivityID"`
}

// Tag is a label attached to activities, used by the tag filter facet.
type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:64;not null"`
}

// Propose submits a previewed activity for review.
func (a *Activity) Propose() error {
	if a.State != ActivityPreview {
		return fmt.Errorf("cannot propose activity in state %q", a.State)
	}
	a.State = ActivityProposed
	return nil
}

// Accept publishes a proposed activity.
func (a *Activity) Accept() error {
	if a.State != ActivityProposed {
		return fmt.Errorf("cannot accept activity in state %q", a.State)
	}
	a.State = ActivityAccepted
	return nil
}

// Deny rejects a proposed activity.
func (a *Activity) Deny() error {
	if a.State != ActivityProposed {
		return fmt.Errorf("cannot deny activity in state %q", a.State)
	}
	a.State = ActivityDenied
	return nil
}

// Archive retires the activity. Valid from any state; fired in bulk
// when the owning period archives.
func (a *Activity) Archive() {
	a.State = ActivityArchived
}
