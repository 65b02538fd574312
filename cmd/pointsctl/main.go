// Command pointsctl is the operator tool for the points ledger.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/ledger"
	"github.com/HanjuJo/Latteh/internal/ledger/entity"
	ledgerrepo "github.com/HanjuJo/Latteh/internal/ledger/repo"
	"github.com/HanjuJo/Latteh/internal/schema"
	"github.com/HanjuJo/Latteh/pkg/database"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	driver string
	dsn    string
	db     *sqlx.DB
	ledger *ledger.Ledger
	logger *zap.SugaredLogger
}

func rootCmd(out io.Writer) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "pointsctl",
		Short:         "Inspect and adjust Latteh point balances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&a.driver, "driver", "", "database driver (postgres or sqlite); defaults to DATABASE_DRIVER")
	cmd.PersistentFlags().StringVar(&a.dsn, "dsn", "", "database DSN; defaults to DATABASE_URL")

	cmd.AddCommand(a.migrateCmd(), a.grantCmd(), a.balanceCmd(), a.historyCmd(), a.statusCmd())
	return cmd
}

func (a *app) open() error {
	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		return err
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = lg.Sugar()

	cfg, err := database.ConfigFromEnv()
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.Driver = a.driver
	}
	if a.dsn != "" {
		cfg.DSN = a.dsn
	}
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	a.db = sqlx.NewDb(sqlDB, cfg.Driver)
	a.ledger = ledger.NewLedger(a.db, ledgerrepo.NewLedgerRepo(a.db), nil, a.logger)
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := schema.Ensure(ctx, a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func (a *app) grantCmd() *cobra.Command {
	var userID, reason string
	var amount int64
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Credit reward points to a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			tx, err := a.ledger.Grant(ctx, userID, amount, reason)
			if err != nil {
				return err
			}
			a.logger.Infow("points granted", "user_id", userID, "amount", amount, "tx_id", tx.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d to %s (tx %s, available %d)\n", amount, userID, tx.ID, tx.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "points to credit")
	cmd.Flags().StringVar(&reason, "reason", "", "description stored on the transaction")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) balanceCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's total and available points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			b, err := a.ledger.Balance(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d available=%d\n", b.Total, b.Available)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's most recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			page, err := a.ledger.History(ctx, userID, 1, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tAMOUNT\tBALANCE\tSTATUS\tSOURCE\tCREATED")
			for _, tx := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					tx.ID, tx.Type, tx.Amount, tx.Balance, tx.Status, tx.Source.Type, tx.CreatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d transactions\n", len(page.Items), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of transactions to show")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	var txID, status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Change the lifecycle status of a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := a.ledger.SetStatus(ctx, txID, entity.Status(status)); err != nil {
				return err
			}
			a.logger.Infow("transaction status changed", "tx_id", txID, "status", status)
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", txID, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&txID, "tx", "", "transaction id")
	cmd.Flags().StringVar(&status, "status", "", "pending, completed, failed or cancelled")
	_ = cmd.MarkFlagRequired("tx")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
