// Package vote implements per-user up/down voting on content.
package vote

import (
	"strings"

	"github.com/HanjuJo/Latteh/internal/apperr"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	None Direction = "none"
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return None, apperr.Validation("voteType must be up or down")
}

// Next returns the user's vote after requesting requested while holding
// current. Repeating a vote withdraws it; the opposite vote replaces it.
func Next(current, requested Direction) Direction {
	if current == requested {
		return None
	}
	return requested
}

// content kinds that can be voted on
const (
	TargetQuestion   = "question"
	TargetAnswer     = "answer"
	TargetExperience = "experience"
)

// Target identifies a votable item.
type Target struct {
	Type string
	ID   string
}

// Tally is the vote count of one target.
type Tally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// Score is computed on read and never stored.
func (t Tally) Score() int64 { return t.Upvotes - t.Downvotes }

// Result is returned after a toggle.
type Result struct {
	Upvotes   int64     `json:"upvotes"`
	Downvotes int64     `json:"downvotes"`
	Score     int64     `json:"score"`
	MyVote    Direction `json:"myVote"`
}

// NewResult combines a tally with the caller's vote.
func NewResult(t Tally, mine Direction) Result {
	return Result{Upvotes: t.Upvotes, Downvotes: t.Downvotes, Score: t.Score(), MyVote: mine}
}
