// Package level derives a user's level from their activity counters.
package level

const (
	Min = 1
	Max = 5
)

// Activity holds the per-user contribution counters.
type Activity struct {
	QuestionsAsked    int64 `json:"questionsAsked" db:"stat_questions_asked"`
	AnswersProvided   int64 `json:"answersProvided" db:"stat_answers_provided"`
	ExperiencesShared int64 `json:"experiencesShared" db:"stat_experiences_shared"`
	EbooksPublished   int64 `json:"ebooksPublished" db:"stat_ebooks_published"`
	BestAnswerCount   int64 `json:"bestAnswerCount" db:"stat_best_answer_count"`
}

// Thresholds lists the minimum score for each level above Min, highest first.
var Thresholds = []struct {
	Level int
	Score int64
}{
	{5, 500},
	{4, 200},
	{3, 100},
	{2, 30},
}

// Score is the weighted activity sum.
func Score(a Activity) int64 {
	return a.QuestionsAsked +
		a.AnswersProvided*2 +
		a.ExperiencesShared*3 +
		a.EbooksPublished*5 +
		a.BestAnswerCount*3
}

// Resolve maps activity to a level in [Min, Max].
func Resolve(a Activity) int {
	s := Score(a)
	for _, t := range Thresholds {
		if s >= t.Score {
			return t.Level
		}
	}
	return Min
}
