// Command coursemd converts one instructional text document to Markdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/dgallion1/coursemd/internal/app"
	"github.com/dgallion1/coursemd/internal/config"
	"github.com/dgallion1/coursemd/internal/document"
	"github.com/dgallion1/coursemd/internal/parser"
	"github.com/dgallion1/coursemd/internal/render"
)

// Version is set at build time via ldflags.
var Version = "dev"

type cliFlags struct {
	output   string
	html     string
	rules    string
	provider string
	title    string
	noLLM    bool
	report   bool
	verbose  bool
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("coursemd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &cliFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "write Markdown to this file (default stdout)")
	fs.StringVar(&f.html, "html", "", "also write an HTML preview to this file")
	fs.StringVar(&f.rules, "rules", "", "classifier rules YAML file (overrides RULES_FILE)")
	fs.StringVar(&f.provider, "provider", "", "table normalization service: anthropic, openai, none")
	fs.StringVar(&f.title, "title", "", "document title (default from the input)")
	fs.BoolVar(&f.noLLM, "no-llm", false, "leave table regions as written")
	fs.BoolVar(&f.report, "report", false, "print the conversion report as JSON to stderr")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: coursemd [flags] INPUT\n\nINPUT is a .txt, .md, .csv, .html, .pdf or .docx file, or - for stdin.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "coursemd:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, rest, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.version {
		fmt.Fprintln(stdout, "coursemd", Version)
		return nil
	}
	if len(rest) != 1 {
		return errors.New("expected exactly one INPUT argument")
	}

	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS value,
	// in which case the runtime default stays.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	cfg := config.Load()
	if f.rules != "" {
		cfg.RulesFile = f.rules
	}
	if f.provider != "" {
		cfg.LLMProvider = strings.ToLower(f.provider)
	}
	if f.noLLM {
		cfg.LLMProvider = config.ProviderNone
	}
	if !f.verbose {
		cfg.LogLevel = "error"
	}
	cfg.LogFormat = "text"
	log := app.NewLogger(cfg, stderr)

	if err := cfg.ValidateProvider(); err != nil {
		return err
	}

	doc, err := readInput(rest[0], stdin, cfg)
	if err != nil {
		return err
	}
	if f.title != "" {
		doc.Title = f.title
	}

	svc, _, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	if c, ok := svc.(interface{ Close() }); ok {
		defer c.Close()
	}
	conv, err := app.NewPipeline(cfg, svc, log)
	if err != nil {
		return err
	}

	out := conv.Run(ctx, doc.Text)
	if err := writeOutput(f.output, stdout, []byte(out.Markdown)); err != nil {
		return err
	}

	if f.html != "" {
		page, err := render.HTML(out.Markdown, doc.Title)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.html, []byte(page), 0o644); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
	}

	if f.report {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Report); err != nil {
			return err
		}
	}
	log.Info("done", "input", rest[0], "fallbacks", out.Report.Fallbacks)
	return ctx.Err()
}

func readInput(path string, stdin io.Reader, cfg config.Config) (*document.Document, error) {
	if path == "-" {
		return (&parser.TextParser{}).Parse(stdin, "stdin.txt")
	}

	p, err := parser.ForFile(path, parser.Options{PDFFallback: cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return p.Parse(fh, filepath.Base(path))
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}
