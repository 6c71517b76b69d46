package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"parcelas/internal/cli"
	"parcelas/internal/core"
	"parcelas/internal/log"
	"parcelas/internal/services"
)

func main() {
	var (
		seed    = flag.Bool("seed", false, "add the three example purchases dated today")
		wipe    = flag.Bool("clear", false, "delete every expense and installment (requires -yes)")
		yes     = flag.Bool("yes", false, "confirm destructive operations")
		month   = flag.String("month", "", "print the summary of month YYYY-MM")
		asJSON  = flag.Bool("json", false, "print the month summary as JSON")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentAdmin)
	cfg := cli.LoadAndValidateConfig(logger)

	if !*seed && !*wipe && *month == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *wipe && !*yes {
		logger.Error("Refusing to clear data without -yes")
		os.Exit(2)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	publisher := cli.InitPublisher(ctx, logger, cfg)
	summaries := services.NewSummaryService(repo, 1, time.Minute)
	svc := services.NewExpenseService(repo, publisher, summaries)
	defer svc.Close()

	if err := runAdmin(ctx, svc, summaries, *wipe, *seed, *month, *asJSON, os.Stdout); err != nil {
		logger.Error("Admin command failed", "error", err)
		svc.Close()
		os.Exit(1)
	}
}

func runAdmin(ctx context.Context, svc *services.ExpenseService, summaries *services.SummaryService, wipe, seed bool, month string, asJSON bool, out io.Writer) error {
	// clear runs first so "-clear -yes -seed" resets to the examples
	if wipe {
		if err := svc.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "All data cleared.")
	}

	if seed {
		created, err := svc.SeedExamples(ctx, core.DateOf(time.Now()))
		if err != nil {
			return err
		}
		for _, e := range created {
			fmt.Fprintf(out, "Seeded %s (%s) %s x%d\n", e.Name, e.ID, e.TotalValue.StringFixed(2), e.InstallmentsCount)
		}
	}

	if month != "" {
		summary, err := summaries.MonthSummary(ctx, month)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		printSummary(out, summary)
	}
	return nil
}

func printSummary(out io.Writer, s core.MonthSummary) {
	fmt.Fprintf(out, "Month %s: due %s, paid %s, open %s\n\n",
		s.MonthKey, s.Due.StringFixed(2), s.Paid.StringFixed(2), s.Open.StringFixed(2))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tPURCHASED\tTHIS MONTH\tPROGRESS")
	for _, e := range s.Expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
			e.Name, e.Category, e.PurchaseDate, e.DueThisMonth.StringFixed(2), e.PaidCount, e.TotalCount)
	}
	tw.Flush()
}
