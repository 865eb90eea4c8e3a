package domain

type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
	ModeHybrid   SearchMode = "hybrid"
	ModeRegex    SearchMode = "regex"
	ModeSymbol   SearchMode = "symbol"
	ModeAuto     SearchMode = "auto"
)

type MatchType string

const (
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
	MatchSymbol   MatchType = "symbol"
	MatchRegex    MatchType = "regex"
	MatchFilename MatchType = "filename"
)

// UnknownFileID marks results whose wire file_id was missing or unparsable.
const UnknownFileID int64 = -1

type SearchFilters struct {
	File          string `json:"file,omitempty"`
	Language      string `json:"language,omitempty"`
	Branch        string `json:"branch,omitempty"`
	SymbolType    string `json:"symbolType,omitempty"`
	IncludeTests  bool   `json:"includeTests,omitempty"`
	CaseSensitive bool   `json:"caseSensitive,omitempty"`
}

type SearchRequest struct {
	RepoID  int64
	Query   string
	Mode    SearchMode
	Filters SearchFilters
	Page    int
	PerPage int
}

// SearchResult is one normalized hit. Every optional wire field maps to an
// explicit zero value here; consumers never see absent fields.
type SearchResult struct {
	ChunkID            string      `json:"chunkId"`
	FileID             int64       `json:"fileId"`
	FilePath           string      `json:"filePath"`
	Snippet            string      `json:"snippet"`
	HighlightedSnippet string      `json:"highlightedSnippet"`
	StartLine          int         `json:"startLine"`
	EndLine            int         `json:"endLine"`
	MatchTypes         []MatchType `json:"matchTypes"`
	RelevanceScore     float64     `json:"relevanceScore"`
	SemanticScore      float64     `json:"semanticScore"`
	KeywordScore       float64     `json:"keywordScore"`
	SymbolScore        float64     `json:"symbolScore"`
	Language           string      `json:"language"`
	SymbolName         string      `json:"symbolName"`
	SymbolType         string      `json:"symbolType"`
	ContextBefore      string      `json:"contextBefore"`
	ContextAfter       string      `json:"contextAfter"`
}

type SearchPage struct {
	Query          string         `json:"query"`
	Mode           SearchMode     `json:"mode"`
	TotalResults   int            `json:"totalResults"`
	Page           int            `json:"page"`
	PerPage        int            `json:"perPage"`
	TotalPages     int            `json:"totalPages"`
	Results        []SearchResult `json:"results"`
	LatencyMS      int64          `json:"latencyMs"`
	FiltersApplied map[string]any `json:"filtersApplied"`
	Suggestions    []string       `json:"suggestions"`
}

type Symbol struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualifiedName"`
	SymbolType    string `json:"symbolType"`
	Signature     string `json:"signature"`
	Docstring     string `json:"docstring"`
	FilePath      string `json:"filePath"`
	StartLine     int    `json:"startLine"`
	EndLine       int    `json:"endLine"`
	Language      string `json:"language"`
	Scope         string `json:"scope"`
	ParentSymbol  string `json:"parentSymbol"`
}

type SymbolQuery struct {
	Query      string
	Language   string
	SymbolType string
	Limit      int
}

type SymbolPage struct {
	Query        string   `json:"query"`
	TotalResults int      `json:"totalResults"`
	Symbols      []Symbol `json:"symbols"`
	LatencyMS    int64    `json:"latencyMs"`
}

// LineRange narrows a file fetch to start..end with surrounding context.
type LineRange struct {
	Start   int
	End     int
	Context int
}

type FileSlice struct {
	FileID     int64          `json:"fileId"`
	FilePath   string         `json:"filePath"`
	Language   string         `json:"language"`
	Content    string         `json:"content"`
	StartLine  int            `json:"startLine"`
	EndLine    int            `json:"endLine"`
	TotalLines int            `json:"totalLines"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
