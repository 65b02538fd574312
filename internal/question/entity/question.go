package entity

import (
	"time"

	"github.com/HanjuJo/Latteh/internal/vote"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered"
	StatusClosed   Status = "closed"
)

// answer experience types
const (
	ExperienceDirect   = "직접 경험"
	ExperienceIndirect = "간접 경험"
	ExperienceExpert   = "전문 지식"
)

func ValidExperienceType(s string) bool {
	switch s {
	case ExperienceDirect, ExperienceIndirect, ExperienceExpert:
		return true
	}
	return false
}

// field limits, counted in characters
const (
	MaxTitle         = 200
	MaxContent       = 5000
	MaxAnswerContent = 10000
)

// Author is the public part of the writer, filled from a join with users.
type Author struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profileImage"`
	Level        int    `json:"level"`
}

// Accepted records the chosen answer. AnswerID is empty until acceptance.
type Accepted struct {
	AnswerID   string     `json:"answerId,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
}

// TimeRestriction limits how long a question accepts answers.
type TimeRestriction struct {
	HasTimeLimit bool       `json:"hasTimeLimit"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the limit has passed at now.
func (tr TimeRestriction) Expired(now time.Time) bool {
	return tr.HasTimeLimit && tr.ExpiresAt != nil && !now.Before(*tr.ExpiresAt)
}

type Question struct {
	ID              string          `json:"id"`
	AuthorID        string          `json:"authorId,omitempty"`
	Author          *Author         `json:"author,omitempty"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	Categories      []string        `json:"categories"`
	Tags            []string        `json:"tags"`
	IsAnonymous     bool            `json:"isAnonymous"`
	OfferedPoints   int64           `json:"offeredPoints"`
	Status          Status          `json:"status"`
	AnswerCount     int64           `json:"answerCount"`
	ViewCount       int64           `json:"viewCount"`
	Accepted        Accepted        `json:"accepted"`
	TimeRestriction TimeRestriction `json:"timeRestriction"`
	IsDeleted       bool            `json:"-"`
	Votes           vote.Tally      `json:"votes"`
	Score           int64           `json:"score"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// IsAccepted reports whether an answer has been chosen.
func (q *Question) IsAccepted() bool { return q.Accepted.AnswerID != "" }

// SetVotes stores the tally and its derived score.
func (q *Question) SetVotes(t vote.Tally) {
	q.Votes = t
	q.Score = t.Score()
}

// HideAuthor strips the author from anonymous questions unless viewer wrote it.
func (q *Question) HideAuthor(viewerID string) {
	if q.IsAnonymous && q.AuthorID != viewerID {
		q.AuthorID = ""
		q.Author = nil
	}
}

type Answer struct {
	ID             string     `json:"id"`
	QuestionID     string     `json:"questionId"`
	AuthorID       string     `json:"authorId,omitempty"`
	Author         *Author    `json:"author,omitempty"`
	Content        string     `json:"content"`
	ExperienceType string     `json:"experienceType"`
	IsAnonymous    bool       `json:"isAnonymous"`
	IsAccepted     bool       `json:"isAccepted"`
	PointsEarned   int64      `json:"pointsEarned"`
	IsDeleted      bool       `json:"-"`
	Votes          vote.Tally `json:"votes"`
	Score          int64      `json:"score"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (a *Answer) SetVotes(t vote.Tally) {
	a.Votes = t
	a.Score = t.Score()
}

func (a *Answer) HideAuthor(viewerID string) {
	if a.IsAnonymous && a.AuthorID != viewerID {
		a.AuthorID = ""
		a.Author = nil
	}
}
