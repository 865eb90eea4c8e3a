package ragapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/mkorchagin/coderag-client/internal/core/domain"
)

type searchResponse struct {
	Query          string             `json:"query"`
	Mode           string             `json:"mode"`
	TotalResults   int                `json:"total_results"`
	Page           int                `json:"page"`
	PerPage        int                `json:"per_page"`
	TotalPages     int                `json:"total_pages"`
	Results        []searchResultItem `json:"results"`
	LatencyMS      int64              `json:"latency_ms"`
	FiltersApplied map[string]any     `json:"filters_applied"`
	Suggestions    []string           `json:"suggestions"`
}

type searchResultItem struct {
	ChunkID            *string    `json:"chunk_id"`
	FileID             flexibleID `json:"file_id"`
	FilePath           string     `json:"file_path"`
	Snippet            string     `json:"snippet"`
	HighlightedSnippet string     `json:"highlighted_snippet"`
	StartLine          int        `json:"start_line"`
	EndLine            int        `json:"end_line"`
	MatchType          []string   `json:"match_type"`
	RelevanceScore     float64    `json:"relevance_score"`
	SemanticScore      *float64   `json:"semantic_score"`
	KeywordScore       *float64   `json:"keyword_score"`
	SymbolScore        *float64   `json:"symbol_score"`
	Language           string     `json:"language"`
	SymbolName         *string    `json:"symbol_name"`
	SymbolType         *string    `json:"symbol_type"`
	ContextBefore      *string    `json:"context_before"`
	ContextAfter       *string    `json:"context_after"`
}

// Search runs one search request. Every call is exactly one request on the
// wire; coalescing and retrying are the caller's business.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchPage, error) {
	const operation = "search"

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.SearchPage{}, domain.WrapError(domain.ErrValidation, operation, errors.New("query must not be empty"))
	}

	params := url.Values{}
	params.Set("q", query)
	if req.Mode != "" {
		params.Set("mode", string(req.Mode))
	}
	if req.Filters.File != "" {
		params.Set("file", req.Filters.File)
	}
	if req.Filters.Language != "" {
		params.Set("lang", req.Filters.Language)
	}
	if req.Filters.Branch != "" {
		params.Set("branch", req.Filters.Branch)
	}
	if req.Filters.SymbolType != "" {
		params.Set("symbol_type", req.Filters.SymbolType)
	}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(req.PerPage))
	}
	params.Set("include_tests", strconv.FormatBool(req.Filters.IncludeTests))
	params.Set("case_sensitive", strconv.FormatBool(req.Filters.CaseSensitive))

	var wire searchResponse
	err := c.oneShot(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/search", req.RepoID), params, &wire, operation)
	})
	if err != nil {
		return domain.SearchPage{}, err
	}
	return c.normalizeSearchPage(wire), nil
}

func (c *Client) normalizeSearchPage(wire searchResponse) domain.SearchPage {
	results := make([]domain.SearchResult, 0, len(wire.Results))
	for _, item := range wire.Results {
		fileID := item.FileID.orUnknown()
		if fileID == domain.UnknownFileID {
			c.logger.Warn("search_result_without_file_id",
				slog.String("file_path", item.FilePath),
			)
		}
		results = append(results, domain.SearchResult{
			ChunkID:            strOr(item.ChunkID),
			FileID:             fileID,
			FilePath:           item.FilePath,
			Snippet:            item.Snippet,
			HighlightedSnippet: item.HighlightedSnippet,
			StartLine:          item.StartLine,
			EndLine:            item.EndLine,
			MatchTypes:         matchTypes(item.MatchType),
			RelevanceScore:     item.RelevanceScore,
			SemanticScore:      floatOr(item.SemanticScore),
			KeywordScore:       floatOr(item.KeywordScore),
			SymbolScore:        floatOr(item.SymbolScore),
			Language:           item.Language,
			SymbolName:         strOr(item.SymbolName),
			SymbolType:         strOr(item.SymbolType),
			ContextBefore:      strOr(item.ContextBefore),
			ContextAfter:       strOr(item.ContextAfter),
		})
	}

	return domain.SearchPage{
		Query:          wire.Query,
		Mode:           domain.SearchMode(wire.Mode),
		TotalResults:   wire.TotalResults,
		Page:           wire.Page,
		PerPage:        wire.PerPage,
		TotalPages:     wire.TotalPages,
		Results:        results,
		LatencyMS:      wire.LatencyMS,
		FiltersApplied: wire.FiltersApplied,
		Suggestions:    wire.Suggestions,
	}
}

func matchTypes(values []string) []domain.MatchType {
	out := make([]domain.MatchType, 0, len(values))
	for _, v := range values {
		out = append(out, domain.MatchType(v))
	}
	return out
}

type symbolSearchResponse struct {
	Query        string       `json:"query"`
	TotalResults int          `json:"total_results"`
	Symbols      []symbolInfo `json:"symbols"`
	LatencyMS    int64        `json:"latency_ms"`
}

type symbolInfo struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	QualifiedName *string `json:"qualified_name"`
	SymbolType    string  `json:"symbol_type"`
	Signature     *string `json:"signature"`
	Docstring     *string `json:"docstring"`
	FilePath      string  `json:"file_path"`
	StartLine     int     `json:"start_line"`
	EndLine       int     `json:"end_line"`
	Language      string  `json:"language"`
	Scope         *string `json:"scope"`
	ParentSymbol  *string `json:"parent_symbol"`
}

func (c *Client) Symbols(ctx context.Context, repoID int64, q domain.SymbolQuery) (domain.SymbolPage, error) {
	const operation = "symbols"

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return domain.SymbolPage{}, domain.WrapError(domain.ErrValidation, operation, errors.New("query must not be empty"))
	}

	params := url.Values{}
	params.Set("q", query)
	if q.Language != "" {
		params.Set("lang", q.Language)
	}
	if q.SymbolType != "" {
		params.Set("symbol_type", q.SymbolType)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var wire symbolSearchResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/symbols", repoID), params, &wire, operation)
	})
	if err != nil {
		return domain.SymbolPage{}, err
	}

	symbols := make([]domain.Symbol, 0, len(wire.Symbols))
	for _, s := range wire.Symbols {
		symbols = append(symbols, domain.Symbol{
			ID:            s.ID,
			Name:          s.Name,
			QualifiedName: strOr(s.QualifiedName),
			SymbolType:    s.SymbolType,
			Signature:     strOr(s.Signature),
			Docstring:     strOr(s.Docstring),
			FilePath:      s.FilePath,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
			Language:      s.Language,
			Scope:         strOr(s.Scope),
			ParentSymbol:  strOr(s.ParentSymbol),
		})
	}
	return domain.SymbolPage{
		Query:        wire.Query,
		TotalResults: wire.TotalResults,
		Symbols:      symbols,
		LatencyMS:    wire.LatencyMS,
	}, nil
}

type fileContentResponse struct {
	FileID     int64          `json:"file_id"`
	FilePath   string         `json:"file_path"`
	Language   string         `json:"language"`
	Content    string         `json:"content"`
	StartLine  int            `json:"start_line"`
	EndLine    int            `json:"end_line"`
	TotalLines int            `json:"total_lines"`
	Metadata   map[string]any `json:"metadata"`
}

// FileContent fetches a file slice. Unknown file ids from degraded search
// results are rejected here rather than turned into a 404 round trip.
func (c *Client) FileContent(ctx context.Context, repoID, fileID int64, lines domain.LineRange) (domain.FileSlice, error) {
	const operation = "file content"

	if fileID <= 0 {
		return domain.FileSlice{}, domain.WrapError(domain.ErrValidation, operation, fmt.Errorf("file id %d is not fetchable", fileID))
	}

	params := url.Values{}
	if lines.Start > 0 {
		params.Set("start", strconv.Itoa(lines.Start))
	}
	if lines.End > 0 {
		params.Set("end", strconv.Itoa(lines.End))
	}
	if lines.Context > 0 {
		params.Set("context", strconv.Itoa(lines.Context))
	}

	var wire fileContentResponse
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, fmt.Sprintf("/repos/%d/file/%d/content", repoID, fileID), params, &wire, operation)
	})
	if err != nil {
		return domain.FileSlice{}, err
	}
	return domain.FileSlice{
		FileID:     wire.FileID,
		FilePath:   wire.FilePath,
		Language:   wire.Language,
		Content:    wire.Content,
		StartLine:  wire.StartLine,
		EndLine:    wire.EndLine,
		TotalLines: wire.TotalLines,
		Metadata:   wire.Metadata,
	}, nil
}
