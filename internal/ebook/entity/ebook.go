package entity

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

const (
	CurrencyKRW = "KRW"
	CurrencyUSD = "USD"
)

func ValidCurrency(s string) bool { return s == CurrencyKRW || s == CurrencyUSD }

const (
	FormatPDF  = "PDF"
	FormatEPUB = "EPUB"
	FormatMOBI = "MOBI"
)

func ValidFormat(s string) bool {
	switch s {
	case FormatPDF, FormatEPUB, FormatMOBI:
		return true
	}
	return false
}

const (
	MaxTitle       = 200
	MaxSubtitle    = 300
	MaxDescription = 2000
)

// Ebook bundles a writer's experiences. Price is in Currency, not points.
type Ebook struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Description string     `json:"description"`
	CoverImage  string     `json:"coverImage"`
	Categories  []string   `json:"categories"`
	Tags        []string   `json:"tags"`
	Price       int64      `json:"price"`
	Currency    string     `json:"currency"`
	Language    string     `json:"language"`
	Pages       int64      `json:"pages,omitempty"`
	FileFormat  string     `json:"fileFormat"`
	ContentIDs  []string   `json:"contentIds"`
	Status      Status     `json:"status"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ViewCount   int64      `json:"viewCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
