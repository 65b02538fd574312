// Package schema creates every table the service needs, in dependency order.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	ebookrepo "github.com/HanjuJo/Latteh/internal/ebook/repo"
	experiencerepo "github.com/HanjuJo/Latteh/internal/experience/repo"
	ledgerrepo "github.com/HanjuJo/Latteh/internal/ledger/repo"
	questionrepo "github.com/HanjuJo/Latteh/internal/question/repo"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	voterepo "github.com/HanjuJo/Latteh/internal/vote/repo"
)

type step struct {
	table string
	fn    func(context.Context) error
}

// Ensure runs each EnsureTable. It is idempotent.
func Ensure(ctx context.Context, db *sqlx.DB) error {
	questions := questionrepo.NewQuestionRepo(db)
	experiences := experiencerepo.NewExperienceRepo(db)
	steps := []step{
		{"users", userrepo.NewUserRepo(db).EnsureTable},
		{"point_transactions", ledgerrepo.NewLedgerRepo(db).EnsureTable},
		{"votes", voterepo.NewVoteRepo(db).EnsureTable},
		{"questions", questions.EnsureTable},
		{"answers", questions.EnsureAnswerTable},
		{"experiences", experiences.EnsureTable},
		{"experience_purchases", experiences.EnsurePurchaseTable},
		{"ebooks", ebookrepo.NewEbookRepo(db).EnsureTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.table, err)
		}
	}
	return nil
}
