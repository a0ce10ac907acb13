package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ismparse/internal"
	"ismparse/internal/config"
	"ismparse/internal/correct"
	"ismparse/internal/mailbox"
	gmailconnector "ismparse/internal/mailbox/gmail"
	imapconnector "ismparse/internal/mailbox/imap"
	"ismparse/internal/pipeline"
	"ismparse/internal/source"
	"ismparse/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	must(err)
	setLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	provider, err := config.LoadProvider(cfg.ProviderPath)
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "classify":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "txt|pdf|html|eml|xlsx (default: from extension)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		doc, err := source.Read(ctx, *inType, *input)
		must(err)
		cls := pipeline.NewClassifier(provider, cfg.AmbiguityMargin).Score(doc.Text)
		fmt.Printf("type=%s manufacturing=%.1f services=%.1f ambiguous=%t\n", cls.ReportType, cls.Manufacturing, cls.Services, cls.Ambiguous)
	case "parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "txt|pdf|html|eml|xlsx (default: from extension)")
		output := fs.String("output", "", "optional output xlsx path")
		store := fs.Bool("store", true, "save the report to the database")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		doc, err := source.Read(ctx, *inType, *input)
		must(err)

		var db *storage.DB
		if *store {
			db, err = storage.Open(cfg.DBPath)
			must(err)
			defer db.Close()
		}
		svc := newService(cfg, provider, db)
		res, err := svc.ProcessDocument(ctx, doc.Text, doc.Ref)
		must(err)
		if *output != "" {
			must(pipeline.ExportReportToXLSX(res.Report, *output))
		}
		out, err := json.MarshalIndent(res.Report, "", "  ")
		must(err)
		fmt.Println(string(out))
	case "batch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", "", "directory of report files")
		outDir := fs.String("out", cfg.OutputDir, "directory for xlsx exports")
		workers := fs.Int("workers", cfg.BatchWorkers, "parallel documents")
		_ = fs.Parse(os.Args[2:])
		paths := fs.Args()
		if strings.TrimSpace(*dir) != "" {
			found, err := listInputs(*dir)
			must(err)
			paths = append(paths, found...)
		}
		if len(paths) == 0 {
			must(fmt.Errorf("--dir or file arguments are required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		svc := newService(cfg, provider, db)

		results := make([]string, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(*workers, 1))
		for i, path := range paths {
			g.Go(func() error {
				doc, err := source.Read(gctx, "", path)
				if err != nil {
					log.Warn().Err(err).Str("doc", path).Msg("batch.read_failed")
					results[i] = fmt.Sprintf("%s: error: %v", path, err)
					return nil
				}
				res, err := svc.ProcessDocument(gctx, doc.Text, doc.Ref)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".xlsx"
				if err := pipeline.ExportReportToXLSX(res.Report, filepath.Join(*outDir, name)); err != nil {
					return fmt.Errorf("%s: export: %w", path, err)
				}
				results[i] = fmt.Sprintf("%s: %s %s indices=%d warnings=%d run=%s", path, res.Report.ReportType, res.Report.MonthYear, len(res.Report.Indices), len(res.Report.Warnings), res.RunID)
				return nil
			})
		}
		must(g.Wait())
		for _, line := range results {
			fmt.Println(line)
		}
		fmt.Printf("batch done files=%d output=%s\n", len(paths), *outDir)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mailProvider := fs.String("provider", cfg.MailProvider, "gmail|imap")
		label := fs.String("label", cfg.MailLabel, "mailbox/label")
		maxMessages := fs.Int("max", cfg.MailFetchMax, "max messages")
		outDir := fs.String("out", cfg.OutputDir, "directory for xlsx exports")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(ctx, cfg, *mailProvider)
		must(err)
		fetch := mailbox.NewFetchService(conn, cfg.RawMailDir, cfg.MailSubjectFilter)
		result, err := fetch.FetchReports(ctx, *label, *maxMessages)
		must(err)

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		svc := newService(cfg, provider, db)
		for _, msg := range result.Stored {
			doc, err := source.Read(ctx, string(source.KindEML), msg.Path)
			if err != nil {
				log.Warn().Err(err).Str("message", msg.MessageID).Msg("mail.read_failed")
				continue
			}
			res, err := svc.ProcessDocument(ctx, doc.Text, msg.MessageID)
			must(err)
			name := strings.TrimSuffix(filepath.Base(msg.Path), ".eml") + ".xlsx"
			must(pipeline.ExportReportToXLSX(res.Report, filepath.Join(*outDir, "mail", name)))
			fmt.Printf("%s: %s %s indices=%d run=%s\n", msg.Subject, res.Report.ReportType, res.Report.MonthYear, len(res.Report.Indices), res.RunID)
		}
		fmt.Printf("mail fetch done provider=%s fetched=%d reports=%d skipped=%d\n", *mailProvider, result.Fetched, len(result.Stored), result.Skipped)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		month := fs.String("month", "", "report month, e.g. \"January 2024\"")
		reportType := fs.String("type", "Manufacturing", "Manufacturing|Services")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*month) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--month and --out are required"))
		}
		rt, ok := internal.ParseReportType(*reportType)
		if !ok {
			must(fmt.Errorf("unknown report type: %s", *reportType))
		}
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		rec, err := db.LoadReport(ctx, *month, string(rt))
		must(err)
		if rec == nil {
			must(fmt.Errorf("no stored report for %s %s", rt, *month))
		}
		must(pipeline.ExportRecordToXLSX(*rec, nil, *out))
		fmt.Printf("exported indices=%d industries=%d to %s\n", len(rec.Indices), len(rec.Industries), *out)
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(ctx, *limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%s %s doc=%s indices=%d industries=%d warnings=%d\n", r.CreatedAt, r.RunID, r.DocRef, r.Counts["indices"], r.Counts["industries"], r.Counts["warnings"])
		}
	default:
		usage()
		os.Exit(1)
	}
}

func newService(cfg config.Config, provider config.Provider, db *storage.DB) *pipeline.ProcessingService {
	opts := []pipeline.Option{}
	if db != nil {
		opts = append(opts, pipeline.WithSink(db))
	}
	corrector, err := correct.NewFromConfig(cfg, provider)
	switch {
	case errors.Is(err, correct.ErrDisabled):
	case err != nil:
		log.Warn().Err(err).Msg("corrector.unavailable")
	default:
		opts = append(opts, pipeline.WithCorrector(corrector, cfg.CorrectorTimeout))
	}
	return pipeline.NewProcessingService(provider, cfg.AmbiguityMargin, opts...)
}

func makeConnector(ctx context.Context, cfg config.Config, provider string) (mailbox.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func setLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func usage() {
	fmt.Println("usage: ismparse <command>")
	fmt.Println("commands:")
	fmt.Println("  classify --input=report.pdf [--type=pdf]")
	fmt.Println("  parse --input=report.pdf [--type=pdf] [--output=./out/report.xlsx] [--store=true]")
	fmt.Println("  batch --dir=./reports [--out=./out] [--workers=4] [files...]")
	fmt.Println("  mail:fetch [--provider=imap|gmail] [--label=INBOX] [--max=20] [--out=./out]")
	fmt.Println("  export:xlsx --month=\"January 2024\" --type=Manufacturing --out=./out/report.xlsx")
	fmt.Println("  runs [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
