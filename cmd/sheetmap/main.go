package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/ledgerline/sheetmap/pkg/aliasstore"
	"github.com/ledgerline/sheetmap/pkg/destdb"
	"github.com/ledgerline/sheetmap/pkg/llm"
	"github.com/ledgerline/sheetmap/pkg/logger"
	"github.com/ledgerline/sheetmap/pkg/metrics"
	"github.com/ledgerline/sheetmap/pkg/session"
	"github.com/ledgerline/sheetmap/pkg/tabular"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	fileFlag := flag.String("file", "", "input workbook (.xlsx or .csv)")
	outFlag := flag.String("out", "", "write the formatted table to this CSV file")
	aliasStoreFlag := flag.String("alias-store", "column_aliases.json", "path to the learned alias store")
	tableFlag := flag.String("table", "", "destination table as schema.table; its columns become the targets")
	saveFlag := flag.Bool("save", false, "replace the destination table's rows with the formatted result")
	contextFlag := flag.String("context", "", "extra hint describing the data being onboarded")
	workersFlag := flag.Int("workers", 4, "concurrent column classification calls")
	modelFlag := flag.String("model", string(llm.DefaultModel), "oracle model name")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to listen on for prometheus metrics (empty = disabled)")
	callTimeoutFlag := flag.Duration("call-timeout", 60*time.Second, "timeout per oracle call")

	flag.Parse()

	// Best effort; the environment may carry everything already.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if *fileFlag == "" {
		return fmt.Errorf("--file is required")
	}
	if *saveFlag && *tableFlag == "" {
		return fmt.Errorf("--save requires --table")
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Warn("sentry init failed, continuing without it", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	oracle := llm.NewAnthropicClient(
		anthropic.Model(*modelFlag),
		log,
		llm.WithName("classifier"),
		llm.WithCallTimeout(*callTimeoutFlag),
	)

	store := aliasstore.New(*aliasStoreFlag, log)

	sess, err := session.New(session.Config{
		Logger:      log,
		Oracle:      oracle,
		AliasStore:  store,
		Workers:     *workersFlag,
		CallTimeout: *callTimeoutFlag,
	})
	if err != nil {
		return err
	}

	// Target columns come from the destination table when one is named,
	// otherwise from the built-in defaults.
	var db *destdb.DB
	if *tableFlag != "" {
		schemaName, tableName, err := splitTable(*tableFlag)
		if err != nil {
			return err
		}
		dbCfg, err := destdb.ConfigFromEnv()
		if err != nil {
			return fmt.Errorf("destination database config: %w", err)
		}
		db, err = destdb.Connect(ctx, dbCfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		columns, err := db.ListColumns(ctx, schemaName, tableName)
		if err != nil {
			return err
		}
		if err := sess.SelectTable(fmt.Sprintf("%s.%s", schemaName, tableName), columns); err != nil {
			return err
		}
	} else if err := sess.UseDefaultColumns(); err != nil {
		return err
	}

	wb, err := tabular.ReadWorkbook(*fileFlag)
	if err != nil {
		return fmt.Errorf("read workbook %s: %w", *fileFlag, err)
	}
	if err := sess.LoadWorkbook(wb); err != nil {
		return err
	}

	hint := *contextFlag
	if hint == "" && *tableFlag != "" {
		hint = fmt.Sprintf("%s table data", sess.TableID())
	}
	if hint != "" {
		hint = " related to " + hint
	}

	if err := sess.Identify(ctx, hint); err != nil {
		return err
	}

	formatted := sess.Formatted()
	log.Info("identification complete",
		"sheet", sess.Sheet(),
		"mapped", len(sess.Mapping()),
		"targets", sess.Registry().Len(),
		"rows", formatted.NumRows(),
	)

	if *outFlag != "" {
		if err := tabular.WriteCSVFile(*outFlag, formatted); err != nil {
			return fmt.Errorf("write %s: %w", *outFlag, err)
		}
		log.Info("formatted table written", "path", *outFlag, "rows", formatted.NumRows())
	}

	if *saveFlag {
		schemaName, tableName, err := splitTable(*tableFlag)
		if err != nil {
			return err
		}
		if err := db.ReplaceRows(ctx, schemaName, tableName, formatted); err != nil {
			return err
		}
	}

	return nil
}

// splitTable parses "schema.table"; a bare name gets the public schema.
func splitTable(qualified string) (string, string, error) {
	parts := strings.Split(qualified, ".")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return "", "", fmt.Errorf("empty table name")
		}
		return "public", parts[0], nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid table %q, expected schema.table", qualified)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("invalid table %q, expected schema.table", qualified)
	}
}
