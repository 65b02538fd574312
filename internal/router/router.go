package router

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/ebook"
	ebookrepo "github.com/HanjuJo/Latteh/internal/ebook/repo"
	"github.com/HanjuJo/Latteh/internal/experience"
	experiencerepo "github.com/HanjuJo/Latteh/internal/experience/repo"
	"github.com/HanjuJo/Latteh/internal/ledger"
	ledgerrepo "github.com/HanjuJo/Latteh/internal/ledger/repo"
	"github.com/HanjuJo/Latteh/internal/metrics"
	"github.com/HanjuJo/Latteh/internal/question"
	questionrepo "github.com/HanjuJo/Latteh/internal/question/repo"
	"github.com/HanjuJo/Latteh/internal/user"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	voterepo "github.com/HanjuJo/Latteh/internal/vote/repo"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

// Deps carries what RegisterRoutes needs from main.
type Deps struct {
	DB             *sqlx.DB
	Tokens         *auth.TokenIssuer
	Hasher         user.PasswordHasher
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// RegisterRoutes builds the services and mounts every HTTP handler on a
// standard library ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) http.Handler {
	db := deps.DB
	users := userrepo.NewUserRepo(db)
	votes := voterepo.NewVoteRepo(db)
	experiences := experiencerepo.NewExperienceRepo(db)

	userSvc := user.NewUserService(db, users, deps.Hasher)
	ledgerSvc := ledger.NewLedger(db, ledgerrepo.NewLedgerRepo(db), deps.Metrics, logger)
	questionSvc := question.NewService(db, questionrepo.NewQuestionRepo(db), users, ledgerSvc, votes, logger)
	experienceSvc := experience.NewService(db, experiences, users, ledgerSvc, votes, logger)
	ebookSvc := ebook.NewService(db, ebookrepo.NewEbookRepo(db), experiences, users, logger)

	authn := auth.NewMiddleware(deps.Tokens, logger)
	authHandler := auth.NewHandler(userSvc, deps.Tokens, logger)
	userHandler := user.NewHandler(userSvc, logger)
	pointsHandler := ledger.NewHandler(ledgerSvc, logger)
	questionHandler := question.NewHandler(questionSvc, logger)
	experienceHandler := experience.NewHandler(experienceSvc, logger)
	ebookHandler := ebook.NewHandler(ebookSvc, logger)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warnw("health probe failed", "err", err)
			utilities.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// auth
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/me", authn.Require(authHandler.Me))
	mux.HandleFunc("GET /api/users/{id}", userHandler.Profile)

	// points
	mux.HandleFunc("GET /api/me/points", authn.Require(pointsHandler.Balance))
	mux.HandleFunc("GET /api/me/points/transactions", authn.Require(pointsHandler.Transactions))
	mux.HandleFunc("POST /api/me/points/withdrawals", authn.Require(pointsHandler.Withdraw))

	// questions and answers
	mux.HandleFunc("GET /api/questions", authn.Optional(questionHandler.List))
	mux.HandleFunc("POST /api/questions", authn.Require(questionHandler.Create))
	mux.HandleFunc("GET /api/questions/{id}", authn.Optional(questionHandler.Get))
	mux.HandleFunc("PUT /api/questions/{id}", authn.Require(questionHandler.Update))
	mux.HandleFunc("DELETE /api/questions/{id}", authn.Require(questionHandler.Delete))
	mux.HandleFunc("POST /api/questions/{id}/vote", authn.Require(questionHandler.Vote))
	mux.HandleFunc("GET /api/questions/{id}/answers", authn.Optional(questionHandler.ListAnswers))
	mux.HandleFunc("POST /api/questions/{id}/answers", authn.Require(questionHandler.CreateAnswer))
	mux.HandleFunc("POST /api/questions/{id}/answers/{answerId}/accept", authn.Require(questionHandler.Accept))
	mux.HandleFunc("POST /api/answers/{id}/vote", authn.Require(questionHandler.VoteAnswer))

	// experiences
	mux.HandleFunc("GET /api/experiences", authn.Optional(experienceHandler.List))
	mux.HandleFunc("POST /api/experiences", authn.Require(experienceHandler.Create))
	mux.HandleFunc("GET /api/experiences/{id}", authn.Optional(experienceHandler.Get))
	mux.HandleFunc("DELETE /api/experiences/{id}", authn.Require(experienceHandler.Delete))
	mux.HandleFunc("POST /api/experiences/{id}/vote", authn.Require(experienceHandler.Vote))
	mux.HandleFunc("POST /api/experiences/{id}/purchase", authn.Require(experienceHandler.Purchase))

	// ebooks
	mux.HandleFunc("GET /api/ebooks", ebookHandler.List)
	mux.HandleFunc("POST /api/ebooks", authn.Require(ebookHandler.Create))
	mux.HandleFunc("GET /api/ebooks/{id}", authn.Optional(ebookHandler.Get))
	mux.HandleFunc("POST /api/ebooks/{id}/publish", authn.Require(ebookHandler.Publish))
	mux.HandleFunc("POST /api/ebooks/{id}/archive", authn.Require(ebookHandler.Archive))

	// logging sits next to the mux so it sees the matched pattern
	var handler http.Handler = LoggingMiddleware(logger, deps.Metrics)(mux)
	handler = SecurityHeadersMiddleware()(handler)
	handler = RequestIDMiddleware()(handler)
	if len(deps.AllowedOrigins) > 0 {
		handler = CORSMiddleware(deps.AllowedOrigins)(handler)
	}
	return handler
}
