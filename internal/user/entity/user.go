package entity

import (
	"time"

	"github.com/HanjuJo/Latteh/internal/level"
)

// user types offered at signup
const (
	TypeDirect    = "직접 경험자"
	TypeIndirect  = "간접 경험자"
	TypeExplorer  = "경험 탐색자"
	DefaultType   = TypeExplorer
	DefaultAvatar = "default-profile.jpg"
)

// ValidType reports whether t is one of the signup user types.
func ValidType(t string) bool {
	switch t {
	case TypeDirect, TypeIndirect, TypeExplorer:
		return true
	}
	return false
}

// Points is the balance summary kept on the user row. Only the ledger writes it.
type Points struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}

// User represents a row in the `users` table.
type User struct {
	ID           string
	Email        string
	Name         string
	Nickname     string
	PasswordHash string
	PasswordAlgo string
	UserType     string
	Bio          string
	ProfileImage string
	Points       Points
	Statistics   level.Activity
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Level is derived from Statistics on every read.
func (u *User) Level() int {
	return level.Resolve(u.Statistics)
}

// Account is the caller's own view of their user.
type Account struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Nickname     string         `json:"nickname"`
	UserType     string         `json:"userType"`
	Bio          string         `json:"bio,omitempty"`
	ProfileImage string         `json:"profileImage"`
	Level        int            `json:"level"`
	Points       Points         `json:"points"`
	Statistics   level.Activity `json:"statistics"`
}

// Profile is what other users see.
type Profile struct {
	ID           string         `json:"id"`
	Nickname     string         `json:"nickname"`
	UserType     string         `json:"userType"`
	Bio          string         `json:"bio,omitempty"`
	ProfileImage string         `json:"profileImage"`
	Level        int            `json:"level"`
	Statistics   level.Activity `json:"statistics"`
}

func (u *User) Account() Account {
	return Account{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Nickname:     u.Nickname,
		UserType:     u.UserType,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Level:        u.Level(),
		Points:       u.Points,
		Statistics:   u.Statistics,
	}
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Nickname:     u.Nickname,
		UserType:     u.UserType,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Level:        u.Level(),
		Statistics:   u.Statistics,
	}
}

// Stat names one activity counter.
type Stat string

const (
	StatQuestionsAsked    Stat = "questionsAsked"
	StatAnswersProvided   Stat = "answersProvided"
	StatExperiencesShared Stat = "experiencesShared"
	StatEbooksPublished   Stat = "ebooksPublished"
	StatBestAnswerCount   Stat = "bestAnswerCount"
)

// Column returns the users column backing the counter, or "" if unknown.
func (s Stat) Column() string {
	switch s {
	case StatQuestionsAsked:
		return "stat_questions_asked"
	case StatAnswersProvided:
		return "stat_answers_provided"
	case StatExperiencesShared:
		return "stat_experiences_shared"
	case StatEbooksPublished:
		return "stat_ebooks_published"
	case StatBestAnswerCount:
		return "stat_best_answer_count"
	}
	return ""
}
