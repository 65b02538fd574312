package entity

import "time"

// Type classifies a point movement. Values are stored verbatim.
type Type string

const (
	TypeEarn       Type = "적립"
	TypeSpend      Type = "사용"
	TypeRefund     Type = "환불"
	TypeReward     Type = "보상"
	TypeWithdrawal Type = "출금"
)

// IsCredit reports whether the type adds to the available balance.
func (t Type) IsCredit() bool {
	return t == TypeEarn || t == TypeRefund || t == TypeReward
}

// IsDebit reports whether the type removes from the available balance.
func (t Type) IsDebit() bool {
	return t == TypeSpend || t == TypeWithdrawal
}

// GrowsTotal reports whether a credit of this type counts toward lifetime
// points. Refunds only return escrow, so they leave the total alone.
func (t Type) GrowsTotal() bool {
	return t == TypeEarn || t == TypeReward
}

// Status of a transaction; the only field that may change after insert.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// source types
const (
	SourceAnswer     = "answer"
	SourceExperience = "experience"
	SourceEbook      = "ebook"
	SourceAdmin      = "admin"
	SourceQuestion   = "question"
	SourceSystem     = "system"
	SourceWithdrawal = "withdrawal"
)

// source models
const (
	ModelAnswer     = "Answer"
	ModelExperience = "Experience"
	ModelEbook      = "Ebook"
	ModelUser       = "User"
	ModelQuestion   = "Question"
)

// Source points at whatever caused the movement. It is a weak reference.
type Source struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
}

// PointTransaction is one immutable ledger entry. Balance is the available
// balance right after the entry was applied.
type PointTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        Type      `json:"type"`
	Amount      int64     `json:"amount"`
	Balance     int64     `json:"balance"`
	Description string    `json:"description"`
	Source      Source    `json:"source"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Balance is a user's point state as stored on the user row.
type Balance struct {
	Total     int64 `json:"total" db:"points_total"`
	Available int64 `json:"available" db:"points_available"`
}

// Entry is a request to move points for one user.
type Entry struct {
	UserID      string
	Amount      int64
	Type        Type
	Description string
	Source      Source
}
