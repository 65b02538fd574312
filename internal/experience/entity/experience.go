package entity

import (
	"time"

	"github.com/HanjuJo/Latteh/internal/vote"
)

// when the experience is most relevant
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeAny       = "any"
)

func ValidTimeOfDay(s string) bool {
	switch s {
	case TimeMorning, TimeAfternoon, TimeEvening, TimeAny:
		return true
	}
	return false
}

const (
	MaxTitle   = 200
	MaxContent = 20000
	MaxSummary = 500
)

type Author struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profileImage"`
	Level        int    `json:"level"`
}

type Experience struct {
	ID             string     `json:"id"`
	AuthorID       string     `json:"authorId"`
	Author         *Author    `json:"author,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content,omitempty"`
	Summary        string     `json:"summary"`
	Categories     []string   `json:"categories"`
	Tags           []string   `json:"tags"`
	ExperienceType string     `json:"experienceType"`
	TimeOfDay      string     `json:"timeOfDay"`
	ReadTime       int64      `json:"readTime"`
	IsPremium      bool       `json:"isPremium"`
	PremiumPrice   int64      `json:"premiumPrice"`
	ViewCount      int64      `json:"viewCount"`
	PurchaseCount  int64      `json:"purchaseCount"`
	Locked         bool       `json:"locked"`
	IsDeleted      bool       `json:"-"`
	Votes          vote.Tally `json:"votes"`
	Score          int64      `json:"score"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (e *Experience) SetVotes(t vote.Tally) {
	e.Votes = t
	e.Score = t.Score()
}

// Lock hides the premium body from viewers who have not bought it.
func (e *Experience) Lock() {
	e.Content = ""
	e.Locked = true
}

// Purchase records that a user bought a premium experience.
type Purchase struct {
	ExperienceID string    `json:"experienceId"`
	BuyerID      string    `json:"buyerId"`
	Price        int64     `json:"price"`
	CreatedAt    time.Time `json:"createdAt"`
}
