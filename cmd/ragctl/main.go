package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkorchagin/coderag-client/internal/bootstrap"
	"github.com/mkorchagin/coderag-client/internal/config"
	"github.com/mkorchagin/coderag-client/internal/core/domain"
	"github.com/mkorchagin/coderag-client/internal/core/usecase"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	app := bootstrap.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(app, cfg.MetricsAddr)
	}

	if err := run(ctx, app, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", domain.ExtractMessage(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ragctl <command> [flags]

commands:
  health                     check the backend RAG pipeline
  repos                      list registered repositories
  ingest      -url           register a GitHub repository
  reingest    -repo          re-clone and re-embed a repository
  delete      -repo          delete a repository and derived data
  index       -repo          start an indexing job
  track       -repo -job     follow an indexing job to completion
  stats       -repo          show index statistics
  clear-index -repo          drop all index data for a repository
  search      -repo -q       search code (add -interactive for live mode)
  symbols     -repo -q       look up symbols
  file        -repo -id      fetch file content
  ask         -repo -q       ask a question about the codebase
  history     -repo          list past chat turns

configuration comes from CODERAG_* environment variables.`)
}

func run(ctx context.Context, app *bootstrap.App, command string, args []string) error {
	switch command {
	case "health":
		return runHealth(ctx, app)
	case "repos":
		return runRepos(ctx, app)
	case "ingest":
		return runIngest(ctx, app, args)
	case "reingest":
		return runReingest(ctx, app, args)
	case "delete":
		return runDelete(ctx, app, args)
	case "index":
		return runIndex(ctx, app, args)
	case "track":
		return runTrack(ctx, app, args)
	case "stats":
		return runStats(ctx, app, args)
	case "clear-index":
		return runClearIndex(ctx, app, args)
	case "search":
		return runSearch(ctx, app, args)
	case "symbols":
		return runSymbols(ctx, app, args)
	case "file":
		return runFile(ctx, app, args)
	case "ask":
		return runAsk(ctx, app, args)
	case "history":
		return runHistory(ctx, app, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runHealth(ctx context.Context, app *bootstrap.App) error {
	health, err := app.Health.Health(ctx)
	if err != nil {
		return err
	}
	return printJSON(health)
}

func runRepos(ctx context.Context, app *bootstrap.App) error {
	repos, err := app.Repos.ListRepositories(ctx)
	if err != nil {
		return err
	}
	return printJSON(repos)
}

func runIngest(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	url := fs.String("url", "", "GitHub repository URL")
	fs.Parse(args)

	receipt, err := app.Repos.Ingest(ctx, *url)
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func runReingest(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("reingest", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	fs.Parse(args)

	receipt, err := app.Repos.Reingest(ctx, *repoID)
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func runDelete(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	fs.Parse(args)

	if err := app.Repos.DeleteRepository(ctx, *repoID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "repository %d deleted\n", *repoID)
	return nil
}

func runIndex(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	branch := fs.String("branch", "main", "branch to index")
	force := fs.Bool("force", false, "re-index even if up to date")
	full := fs.Bool("full", false, "full rebuild instead of incremental")
	follow := fs.Bool("follow", false, "track the job until it finishes")
	fs.Parse(args)

	job, err := app.Index.StartIndex(ctx, *repoID, domain.IndexOptions{
		Branch:      *branch,
		Force:       *force,
		Incremental: !*full,
	})
	if err != nil {
		return err
	}
	if !*follow {
		return printJSON(job)
	}
	return followJob(ctx, app, *repoID, job.JobID)
}

func runTrack(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	jobID := fs.Int64("job", 0, "job id (0 = latest)")
	fs.Parse(args)

	return followJob(ctx, app, *repoID, *jobID)
}

func followJob(ctx context.Context, app *bootstrap.App, repoID, jobID int64) error {
	job, err := app.Tracker.Track(ctx, repoID, jobID, func(job domain.IndexJob) {
		fmt.Fprintf(os.Stderr, "job %d: %s %.0f%% (files=%d chunks=%d symbols=%d)\n",
			job.JobID, job.State, job.Progress*100,
			job.FilesProcessed, job.ChunksCreated, job.SymbolsExtracted)
	})
	if err != nil {
		return err
	}
	return printJSON(job)
}

func runStats(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	fs.Parse(args)

	stats, err := app.Index.IndexStats(ctx, *repoID)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runClearIndex(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("clear-index", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	fs.Parse(args)

	result, err := app.Index.ClearIndex(ctx, *repoID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runSearch(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	query := fs.String("q", "", "search query")
	mode := fs.String("mode", app.Config.SearchMode, "semantic|keyword|hybrid|regex|symbol|auto")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", app.Config.SearchPageSize, "results per page")
	lang := fs.String("lang", "", "language filter")
	file := fs.String("file", "", "file path filter")
	symbolType := fs.String("symbol-type", "", "symbol type filter")
	includeTests := fs.Bool("tests", true, "include test files")
	caseSensitive := fs.Bool("case", false, "case sensitive search")
	interactive := fs.Bool("interactive", false, "read queries line by line from stdin")
	fs.Parse(args)

	filters := domain.SearchFilters{
		File:          *file,
		Language:      *lang,
		Branch:        "main",
		SymbolType:    *symbolType,
		IncludeTests:  *includeTests,
		CaseSensitive: *caseSensitive,
	}

	if *interactive {
		return runSearchInteractive(ctx, app, *repoID, domain.SearchMode(*mode), filters)
	}

	pageResult, err := app.Search.Search(ctx, domain.SearchRequest{
		RepoID:  *repoID,
		Query:   *query,
		Mode:    domain.SearchMode(*mode),
		Filters: filters,
		Page:    *page,
		PerPage: *perPage,
	})
	if err != nil {
		return err
	}
	return printJSON(pageResult)
}

// runSearchInteractive feeds stdin lines through the debounced session, so
// fast edits coalesce the same way they would in a UI search box.
func runSearchInteractive(ctx context.Context, app *bootstrap.App, repoID int64, mode domain.SearchMode, filters domain.SearchFilters) error {
	session := app.NewSearchSession(ctx, repoID,
		func(page domain.SearchPage) { printSearchSummary(page) },
		func(message string) { fmt.Fprintln(os.Stderr, "search error:", message) },
	)
	defer session.Close()
	session.SetMode(mode)
	session.SetFilters(filters)

	fmt.Fprintln(os.Stderr, "type to search, empty line clears, ctrl-d exits")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		session.SetQuery(scanner.Text())
	}
	return scanner.Err()
}

func printSearchSummary(page domain.SearchPage) {
	if page.Query == "" {
		return
	}
	fmt.Printf("%d results for %q (page %d/%d, %dms)\n",
		page.TotalResults, page.Query, page.Page, page.TotalPages, page.LatencyMS)
	for _, result := range page.Results {
		fmt.Printf("  %s:%d-%d  score=%.2f\n",
			result.FilePath, result.StartLine, result.EndLine, result.RelevanceScore)
	}
}

func runSymbols(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	query := fs.String("q", "", "symbol name query")
	lang := fs.String("lang", "", "language filter")
	symbolType := fs.String("type", "", "symbol type filter")
	limit := fs.Int("limit", 50, "maximum results")
	fs.Parse(args)

	symbols, err := app.Code.Symbols(ctx, *repoID, domain.SymbolQuery{
		Query:      *query,
		Language:   *lang,
		SymbolType: *symbolType,
		Limit:      *limit,
	})
	if err != nil {
		return err
	}
	return printJSON(symbols)
}

func runFile(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("file", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	fileID := fs.Int64("id", 0, "file id from search results")
	start := fs.Int("start", 0, "start line")
	end := fs.Int("end", 0, "end line")
	contextLines := fs.Int("context", 0, "context lines around the range")
	fs.Parse(args)

	slice, err := app.Code.FileContent(ctx, *repoID, *fileID, domain.LineRange{
		Start:   *start,
		End:     *end,
		Context: *contextLines,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s (%s) lines %d-%d of %d\n",
		slice.FilePath, slice.Language, slice.StartLine, slice.EndLine, slice.TotalLines)
	fmt.Println(slice.Content)
	return nil
}

func runAsk(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	question := fs.String("q", "", "question about the codebase")
	stream := fs.Bool("stream", true, "stream the answer token by token")
	topK := fs.Int("top-k", app.Config.ChatTopK, "code chunks to retrieve")
	style := fs.String("style", app.Config.ChatPromptStyle, "senior_dev|concise|educational")
	fs.Parse(args)

	req := domain.ChatRequest{
		RepoID:          *repoID,
		Question:        *question,
		TopK:            *topK,
		PromptStyle:     *style,
		IncludeSources:  true,
		IncludeMetadata: true,
	}

	if !*stream {
		message, err := app.Chat.Ask(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(message)
	}

	session := app.NewChatSession(usecase.ChatCallbacks{
		OnToken: func(token string) {
			fmt.Print(token)
		},
		OnSources: func(sources []domain.SourceRef) {
			fmt.Fprintln(os.Stderr)
			for _, src := range sources {
				fmt.Fprintf(os.Stderr, "source: %s (%s) score=%.2f\n",
					src.FilePath, src.Language, src.RelevanceScore)
			}
		},
		OnDone: func(messageID int64) {
			fmt.Println()
			fmt.Fprintf(os.Stderr, "saved as message %d\n", messageID)
		},
		OnError: func(message string) {
			fmt.Fprintln(os.Stderr, "stream error:", message)
		},
	})

	// Interrupts cancel the session instead of tearing the process down
	// mid-stream.
	go func() {
		<-ctx.Done()
		session.Cancel()
	}()

	return session.Ask(ctx, req)
}

func runHistory(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	repoID := fs.Int64("repo", 0, "repository id")
	limit := fs.Int("limit", 50, "maximum messages")
	fs.Parse(args)

	messages, err := app.Chat.History(ctx, *repoID, *limit)
	if err != nil {
		return err
	}
	return printJSON(messages)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func serveMetrics(app *bootstrap.App, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	app.Logger.Info("metrics_listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.Logger.Error("metrics_server_failed", "error", err.Error())
	}
}
