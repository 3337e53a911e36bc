package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultArxivEndpoint = "https://export.arxiv.org/api/query"

// Searcher finds papers for a topic.
type Searcher interface {
	Search(ctx context.Context, topic string, maxResults int) ([]Paper, error)
}

// ArxivClient queries the arXiv Atom API.
type ArxivClient struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewArxivClient() *ArxivClient {
	return &ArxivClient{
		Endpoint:   defaultArxivEndpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

func (c *ArxivClient) Search(ctx context.Context, topic string, maxResults int) ([]Paper, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultArxivEndpoint
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	query := url.Values{}
	query.Set("search_query", "all:"+topic)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv request: unexpected status %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entry.paper())
	}
	return papers, nil
}

func (e atomEntry) paper() Paper {
	paper := Paper{
		ID:        shortID(e.ID),
		Title:     collapseSpace(e.Title),
		Summary:   collapseSpace(e.Summary),
		Published: e.Published,
	}
	if len(e.Published) >= len("2006-01-02") {
		paper.Published = e.Published[:len("2006-01-02")]
	}
	for _, author := range e.Authors {
		paper.Authors = append(paper.Authors, strings.TrimSpace(author.Name))
	}
	for _, link := range e.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paper.PDFURL = link.Href
			break
		}
	}
	return paper
}

// shortID strips the abs URL prefix: http://arxiv.org/abs/2301.00001v2
// becomes 2301.00001v2.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.Index(id, "/abs/"); i >= 0 {
		return id[i+len("/abs/"):]
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
