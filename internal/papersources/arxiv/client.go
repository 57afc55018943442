package arxiv

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL serves e-print source archives.
	DefaultBaseURL = "http://arxiv.org"

	// DefaultExportURL is the arXiv metadata API base URL.
	DefaultExportURL = "http://export.arxiv.org/api"

	// DefaultRateLimit follows arXiv's one request per three seconds guidance.
	DefaultRateLimit = 1.0 / 3

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retries per request.
	DefaultMaxRetries = 2

	// DefaultMaxArchiveSize caps the decompressed e-print size (64MB).
	DefaultMaxArchiveSize int64 = 64 << 20

	sourceName = "arxiv"
)

var gzipMagic = []byte{0x1f, 0x8b}

// arxivIDRegex extracts the arXiv ID from an Atom entry id, dropping the version.
// Matches "http://arxiv.org/abs/2301.12345v1" and "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// ErrArchiveTooLarge is returned when an e-print exceeds MaxArchiveSize.
var ErrArchiveTooLarge = errors.New("e-print archive exceeds size limit")

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL serves /e-print/<id>.
	BaseURL string

	// ExportURL serves the Atom /query endpoint.
	ExportURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of retries on 429, 5xx and network errors.
	MaxRetries int

	// MaxArchiveSize bounds the bytes read from a (decompressed) e-print.
	MaxArchiveSize int64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ExportURL == "" {
		c.ExportURL = DefaultExportURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxArchiveSize == 0 {
		c.MaxArchiveSize = DefaultMaxArchiveSize
	}
}

// Client fetches e-print bibliographies and cross-references DOIs and arXiv
// identifiers. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// New creates a new arXiv client with the given configuration.
func New(cfg Config, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		Metrics:    metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FetchBibliographies downloads the e-print source of arxivID and returns the
// content of every .bbl file in it. A single-file submission is returned as is
// when it carries an inline thebibliography environment. An e-print without
// any bibliography yields an empty slice.
func (c *Client) FetchBibliographies(ctx context.Context, arxivID string) ([]string, error) {
	arxivID = domain.BareArXivID(arxivID)
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "must not be empty")
	}

	endpoint, err := url.JoinPath(c.config.BaseURL, "e-print", arxivID)
	if err != nil {
		return nil, fmt.Errorf("building e-print URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req, "e-print")
	if err != nil {
		return nil, fmt.Errorf("fetching e-print %s: %w", arxivID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("e-print", arxivID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	raw, err := readLimited(resp.Body, c.config.MaxArchiveSize)
	if err != nil {
		return nil, fmt.Errorf("reading e-print %s: %w", arxivID, err)
	}

	return extractBibliographies(raw, c.config.MaxArchiveSize)
}

// LookupArXivID returns the arXiv identifier registered for doi, or "" when
// arXiv knows no preprint for it.
func (c *Client) LookupArXivID(ctx context.Context, doi string) (string, error) {
	doi = domain.BareDOI(doi)
	if doi == "" {
		return "", nil
	}

	query := url.Values{}
	query.Set("search_query", "doi:"+doi)
	query.Set("max_results", "1")

	feed, err := c.query(ctx, query, "query_doi")
	if err != nil {
		return "", err
	}
	if len(feed.Entries) == 0 {
		return "", nil
	}
	return extractArXivID(feed.Entries[0].ID), nil
}

// LookupDOI returns the DOI arXiv records for arxivID, or "" when none is set.
func (c *Client) LookupDOI(ctx context.Context, arxivID string) (string, error) {
	arxivID = domain.BareArXivID(arxivID)
	if arxivID == "" {
		return "", nil
	}

	query := url.Values{}
	query.Set("id_list", arxivID)
	query.Set("max_results", "1")

	feed, err := c.query(ctx, query, "query_id")
	if err != nil {
		return "", err
	}
	for _, entry := range feed.Entries {
		if extractArXivID(entry.ID) == "" {
			continue
		}
		return strings.TrimSpace(entry.DOI), nil
	}
	return "", nil
}

func (c *Client) query(ctx context.Context, query url.Values, endpoint string) (*Feed, error) {
	baseURL, err := url.Parse(c.config.ExportURL)
	if err != nil {
		return nil, fmt.Errorf("parsing export URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req, endpoint)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB.
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: decoding atom feed: %v", domain.ErrMalformedResponse, err)
	}
	return &feed, nil
}

// extractBibliographies unpacks raw (tar, gzipped tar or a gzipped single
// file) and collects the bibliography documents in archive order.
func extractBibliographies(raw []byte, limit int64) ([]string, error) {
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()

		raw, err = readLimited(zr, limit)
		if err != nil {
			return nil, fmt.Errorf("decompressing e-print: %w", err)
		}
	}

	tr := tar.NewReader(bytes.NewReader(raw))
	docs := []string{}
	first := true
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if first {
				return singleFile(raw), nil
			}
			return nil, fmt.Errorf("reading e-print archive: %w", err)
		}
		first = false

		if hdr.Typeflag != tar.TypeReg || !strings.EqualFold(path.Ext(hdr.Name), ".bbl") {
			continue
		}
		content, err := readLimited(tr, limit)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		docs = append(docs, decode(content))
	}
	if first {
		return singleFile(raw), nil
	}
	return docs, nil
}

func singleFile(raw []byte) []string {
	text := decode(raw)
	if strings.Contains(text, `\begin{thebibliography}`) {
		return []string{text}
	}
	return []string{}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrArchiveTooLarge
	}
	return data, nil
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
