// Package pubmed is a client for the NCBI E-utilities esearch and efetch endpoints.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const maxErrorBody = 512

// ErrUpstream is returned for non-2xx E-utilities responses.
var ErrUpstream = errors.New("pubmed upstream error")

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Tool    string
	Email   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client queries PubMed.
type Client struct {
	baseURL string
	apiKey  string
	tool    string
	email   string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client. Zero Timeout means 60s.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		tool:    cfg.Tool,
		email:   cfg.Email,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search returns up to maxResults PMIDs matching term, most relevant first.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]string, error) {
	q := c.params()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("retmode", "json")
	q.Set("sort", "relevance")

	body, err := c.get(ctx, "esearch.fcgi", q)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp esearchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode esearch: %w", err)
	}

	c.logger.Debug("PubMed search completed",
		zap.String("term", term),
		zap.String("count", resp.Result.Count),
		zap.Int("ids", len(resp.Result.IDList)),
	)
	return resp.Result.IDList, nil
}

// Fetch returns the records for pmids in response order.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	q := c.params()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	body, err := c.get(ctx, "efetch.fcgi", q)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var set articleSet
	if err := xml.NewDecoder(body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode efetch: %w", err)
	}

	out := make([]Article, 0, len(set.Articles))
	for i := range set.Articles {
		out = append(out, set.Articles[i].toArticle())
	}
	return out, nil
}

func (c *Client) params() url.Values {
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		q.Set("tool", c.tool)
	}
	if c.email != "" {
		q.Set("email", c.email)
	}
	return q
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (io.ReadCloser, error) {
	u := c.baseURL + "/" + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s: status %d: %s: %w",
			endpoint, resp.StatusCode, strings.TrimSpace(string(msg)), ErrUpstream)
	}
	return resp.Body, nil
}
