package model

import "time"

// PushSubscription is a browser push endpoint and the animals it follows for
// offspring announcements.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Animals []*Animal `gorm:"many2many:subscription_animal_mapping;"`
}

// FollowedAnimalIDs returns the ids of the loaded Animals association, in
// load order. It is empty when the association was not preloaded.
func (p *PushSubscription) FollowedAnimalIDs() []int64 {
	ids := make([]int64, 0, len(p.Animals))
	for _, a := range p.Animals {
		ids = append(ids, a.ID)
	}
	return ids
}
