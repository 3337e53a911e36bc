package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	ServerName         = "research"
	FoldersURI         = "papers://folders"
	TopicURITemplate   = "papers://{topic}"
	topicURIPrefix     = "papers://"
	defaultMaxResults  = 5
	summaryPreviewRune = 500
)

type SearchInput struct {
	Topic      string `json:"topic" jsonschema:"the topic to search for on arXiv"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results to retrieve (default 5)"`
}

type ExtractInput struct {
	PaperID string `json:"paper_id" jsonschema:"the arXiv id of the paper"`
}

type Options struct {
	Store    *Store
	Searcher Searcher
	Logger   *zap.Logger
	Version  string
}

// NewServer builds the research MCP server: arXiv search tools, topic
// resources and a search prompt.
func NewServer(opts Options) (*mcp.Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("research server requires a store")
	}
	searcher := opts.Searcher
	if searcher == nil {
		searcher = NewArxivClient()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	h := &handlers{store: opts.Store, searcher: searcher, logger: logger.Named("research")}
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("search_papers schema: %w", err)
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_papers",
		Description: "Search for papers on arXiv based on a topic and store their information.",
		InputSchema: searchSchema,
	}, h.searchPapers)

	extractSchema, err := jsonschema.For[ExtractInput](nil)
	if err != nil {
		return nil, fmt.Errorf("extract_info schema: %w", err)
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_info",
		Description: "Extract information about a specific paper stored by search_papers.",
		InputSchema: extractSchema,
	}, h.extractInfo)

	server.AddResource(&mcp.Resource{
		URI:         FoldersURI,
		Name:        "folders",
		Description: "List all available topic folders.",
		MIMEType:    "text/markdown",
	}, h.folders)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: TopicURITemplate,
		Name:        "topic_papers",
		Description: "Detailed information about stored papers on a topic.",
		MIMEType:    "text/markdown",
	}, h.topicPapers)

	server.AddPrompt(&mcp.Prompt{
		Name:        "generate_search_prompt",
		Description: "Generate a prompt to find and discuss academic papers on a specific topic.",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Description: "research topic", Required: true},
			{Name: "num_papers", Description: "number of papers to search for (default 5)"},
		},
	}, h.searchPrompt)

	return server, nil
}

type handlers struct {
	store    *Store
	searcher Searcher
	logger   *zap.Logger
}

func (h *handlers) searchPapers(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return errorResult("topic is required"), nil, nil
	}
	if _, err := h.store.topicPath(topic); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	papers, err := h.searcher.Search(ctx, topic, maxResults)
	if err != nil {
		h.logger.Warn("arxiv search failed", zap.String("topic", topic), zap.Error(err))
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	merged, path, err := h.store.Save(topic, papers)
	if err != nil {
		return nil, nil, err
	}
	h.logger.Info("papers saved", zap.String("topic", topic), zap.Int("found", len(papers)), zap.String("path", path))

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(data)), nil, nil
}

func (h *handlers) extractInfo(_ context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(in.PaperID)
	if id == "" {
		return errorResult("paper_id is required"), nil, nil
	}
	paper, ok, err := h.store.Find(id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return textResult(fmt.Sprintf("There's no saved information related to paper %s.", id)), nil, nil
	}
	data, err := json.MarshalIndent(paper, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(data)), nil, nil
}

func (h *handlers) folders(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	folders, err := h.store.Folders()
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("# Available Topics\n\n")
	if len(folders) == 0 {
		b.WriteString("No topics found.\n")
	}
	for _, folder := range folders {
		fmt.Fprintf(&b, "- %s\n", folder)
	}
	if len(folders) > 0 {
		b.WriteString("\nUse @<topic> to access papers in that topic.\n")
	}
	return markdownResult(req.Params.URI, b.String()), nil
}

func (h *handlers) topicPapers(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	topic := strings.TrimPrefix(uri, topicURIPrefix)
	if topic == "" || topic == uri {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	papers, ok, err := h.store.Topic(topic)
	if errors.Is(err, ErrInvalidTopic) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if !ok {
		return markdownResult(uri, fmt.Sprintf("# No papers found for topic: %s\n\nTry searching for papers on this topic first.\n", topic)), nil
	}
	if err != nil {
		return markdownResult(uri, fmt.Sprintf("# Error reading papers data for %s\n\nThe papers data file is corrupted.\n", topic)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Papers on %s\n\n", titleCase(strings.ReplaceAll(topic, "_", " ")))
	fmt.Fprintf(&b, "Total papers: %d\n\n", papers.Len())
	for pair := papers.Oldest(); pair != nil; pair = pair.Next() {
		paper := pair.Value
		fmt.Fprintf(&b, "## %s\n", paper.Title)
		fmt.Fprintf(&b, "- **Paper ID**: %s\n", pair.Key)
		fmt.Fprintf(&b, "- **Authors**: %s\n", strings.Join(paper.Authors, ", "))
		fmt.Fprintf(&b, "- **Published**: %s\n", paper.Published)
		fmt.Fprintf(&b, "- **PDF URL**: [%s](%s)\n\n", paper.PDFURL, paper.PDFURL)
		fmt.Fprintf(&b, "### Summary\n%s\n\n---\n\n", preview(paper.Summary, summaryPreviewRune))
	}
	return markdownResult(uri, b.String()), nil
}

func (h *handlers) searchPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := strings.TrimSpace(req.Params.Arguments["topic"])
	if topic == "" {
		return nil, fmt.Errorf("argument topic is required")
	}
	numPapers := defaultMaxResults
	if raw := strings.TrimSpace(req.Params.Arguments["num_papers"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("argument num_papers must be a positive integer")
		}
		numPapers = n
	}
	return &mcp.GetPromptResult{
		Description: "Search and discuss papers on " + topic,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: searchPromptText(topic, numPapers)},
		}},
	}, nil
}

func searchPromptText(topic string, numPapers int) string {
	return fmt.Sprintf(`Search for %[2]d academic papers about '%[1]s' using the search_papers tool. Follow these instructions:
1. First, search for papers using search_papers(topic='%[1]s', max_results=%[2]d)
2. For each paper found, extract and organize the following information:
   - Paper title
   - Authors
   - Publication date
   - Brief summary of the key findings
   - Main contributions or innovations
   - Methodologies used
   - Relevance to the topic '%[1]s'
3. Provide a comprehensive summary that includes:
   - Overview of the current state of research in '%[1]s'
   - Common themes and trends across the papers
   - Key research gaps or areas for future investigation
   - Most impactful or influential papers in this area
4. Organize your findings in a clear, structured format with headings and bullet points for easy readability.

Please present both detailed information about each paper and a high-level synthesis of the research landscape in %[1]s.`, topic, numPapers)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}, IsError: true}
}

func markdownResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
		URI:      uri,
		MIMEType: "text/markdown",
		Text:     text,
	}}}
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
