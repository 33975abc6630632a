package matching

import (
	"bytes"
	"sort"

	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/skill"

	"github.com/google/uuid"
)

// Tag is a counterparty skill tag as returned by the counterparty query.
type Tag struct {
	UserID    uuid.UUID
	SkillID   uuid.UUID
	Direction skill.Direction
}

// Proposal is a pairing that has not been persisted yet.
type Proposal struct {
	TeacherID       uuid.UUID
	StudentID       uuid.UUID
	TeachingSkillID uuid.UUID
	LearningSkillID uuid.UUID
}

func (p Proposal) Key() match.Key {
	return match.Key{
		TeacherID:       p.TeacherID,
		StudentID:       p.StudentID,
		TeachingSkillID: p.TeachingSkillID,
		LearningSkillID: p.LearningSkillID,
	}
}

// QuerySkillIDs returns the union of the teaching and learning sets, deduplicated
// and sorted, for use as the membership filter of the counterparty query.
func QuerySkillIDs(teaching, learning []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(teaching)+len(learning))
	out := make([]uuid.UUID, 0, len(teaching)+len(learning))
	for _, ids := range [][]uuid.UUID{teaching, learning} {
		for _, id := range ids {
			if id == uuid.Nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

// FindCandidates proposes pairings between actorID and the owners of the
// counterparty tags. A counterparty who teaches something the actor wants to
// learn becomes the teacher; a counterparty who wants to learn something the
// actor teaches becomes the student. The reciprocal skill is the lowest id of
// the actor's opposite set, and the candidate is skipped when that set is empty.
// Output is deduplicated and sorted.
func FindCandidates(actorID uuid.UUID, teaching, learning []uuid.UUID, counterparties []Tag) []Proposal {
	if actorID == uuid.Nil || len(counterparties) == 0 {
		return []Proposal{}
	}

	teachSet := toSet(teaching)
	learnSet := toSet(learning)
	reciprocalTeach, hasTeach := lowestID(teaching)
	reciprocalLearn, hasLearn := lowestID(learning)

	seen := make(map[match.Key]struct{}, len(counterparties))
	out := make([]Proposal, 0, len(counterparties))
	add := func(p Proposal) {
		if p.TeacherID == p.StudentID {
			return
		}
		k := p.Key()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}

	for _, p := range counterparties {
		if p.UserID == uuid.Nil || p.UserID == actorID || p.SkillID == uuid.Nil {
			continue
		}

		switch p.Direction {
		case skill.DirectionTeaching:
			if _, ok := learnSet[p.SkillID]; !ok || !hasTeach {
				continue
			}
			add(Proposal{
				TeacherID:       p.UserID,
				StudentID:       actorID,
				TeachingSkillID: p.SkillID,
				LearningSkillID: reciprocalTeach,
			})
		case skill.DirectionLearning:
			if _, ok := teachSet[p.SkillID]; !ok || !hasLearn {
				continue
			}
			add(Proposal{
				TeacherID:       actorID,
				StudentID:       p.UserID,
				TeachingSkillID: p.SkillID,
				LearningSkillID: reciprocalLearn,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return lessProposal(out[i], out[j]) })
	return out
}

func lessProposal(a, b Proposal) bool {
	pairs := [][2]uuid.UUID{
		{a.TeacherID, b.TeacherID},
		{a.StudentID, b.StudentID},
		{a.TeachingSkillID, b.TeachingSkillID},
		{a.LearningSkillID, b.LearningSkillID},
	}
	for _, p := range pairs {
		if c := bytes.Compare(p[0][:], p[1][:]); c != 0 {
			return c < 0
		}
	}
	return false
}

func lowestID(ids []uuid.UUID) (uuid.UUID, bool) {
	var (
		low   uuid.UUID
		found bool
	)
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if !found || bytes.Compare(id[:], low[:]) < 0 {
			low = id
			found = true
		}
	}
	return low, found
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}
