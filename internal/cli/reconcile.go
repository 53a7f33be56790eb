package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/audit"
	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database"
	auditrepo "github.com/mrlokans/storefront/internal/database/audit"
	"github.com/mrlokans/storefront/internal/database/reconciliation"
	"github.com/mrlokans/storefront/internal/database/transactions"
	"github.com/mrlokans/storefront/internal/reconcile"
)

// ReconcileCommand runs one entitlement reconciliation scan outside the server.
type ReconcileCommand struct {
	DatabasePath string
	Grace        time.Duration
	Verbose      bool

	out io.Writer
}

func NewReconcileCommand() *ReconcileCommand {
	return &ReconcileCommand{out: os.Stdout}
}

func (cmd *ReconcileCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.DurationVar(&cmd.Grace, "grace", reconcile.DefaultGrace, "Skip purchases completed more recently than this")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Log each orphaned purchase")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s reconcile [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Find completed purchases without an ownership row and record them as issues.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *ReconcileCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close()

	log := zerolog.Nop()
	if cmd.Verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	auditor := audit.NewService(auditrepo.NewRepository(db.DB), log)
	defer auditor.Wait()

	scanner := reconcile.NewScanner(
		transactions.NewRepository(db.DB),
		reconciliation.NewRepository(db.DB),
		auditor,
		log,
	).WithGrace(cmd.Grace)

	report, err := scanner.Scan(context.Background())
	if err != nil {
		return fmt.Errorf("reconciliation scan failed: %w", err)
	}

	fmt.Fprintf(cmd.out, "Checked %d completed purchases, recorded %d new issues\n", report.Checked, report.NewIssues)
	return nil
}
