package model

import "github.com/google/uuid"

// GroupMembership ties a person to a group with a proficiency target for
// that group. Target levels bias question selection toward material near
// the intended difficulty.
type GroupMembership struct {
	GroupID     uuid.UUID `json:"group_id"`
	TargetLevel int       `json:"target_level"`
}

// Person is a registered quiz recipient. The directory is owned by the
// persistence layer; the scheduling core only reads it.
type Person struct {
	ID          uuid.UUID         `json:"id"`
	FullName    string            `json:"full_name"`
	Memberships []GroupMembership `json:"memberships"`
}

// GroupIDs returns the ids of every group the person belongs to.
func (p *Person) GroupIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Memberships))
	for _, m := range p.Memberships {
		ids = append(ids, m.GroupID)
	}
	return ids
}

// TargetLevelFor returns the maximum target level among the person's
// memberships that overlap the given groups. An empty intersection yields 0,
// so questions from groups the person has no target for fall under the full
// Gaussian penalty instead of failing the selection.
func (p *Person) TargetLevelFor(groups []uuid.UUID) int {
	level := 0
	for _, m := range p.Memberships {
		for _, g := range groups {
			if m.GroupID == g && m.TargetLevel > level {
				level = m.TargetLevel
			}
		}
	}
	return level
}
