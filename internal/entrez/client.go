package entrez

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
)

// DefaultBaseURL points at the public NCBI E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// searchResponse models the esearch JSON envelope; only the id list matters.
type searchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// taxaSet models the efetch taxonomy XML payload.
type taxaSet struct {
	XMLName xml.Name `xml:"TaxaSet"`
	Taxa    []taxon  `xml:"Taxon"`
}

type taxon struct {
	TaxID string `xml:"TaxId"`
	Rank  string `xml:"Rank"`
}

// Searcher defines the two E-utilities operations the resolver consumes.
type Searcher interface {
	Search(ctx context.Context, term string, retMax int) ([]string, error)
	FetchRank(ctx context.Context, taxID string) (string, error)
}

// Client provides access to the NCBI taxonomy E-utilities.
type Client struct {
	email      string
	apiKey     string
	tool       string
	baseURL    string
	httpClient *http.Client
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an E-utilities client. NCBI requires a contact email on every
// request; the API key is optional and only raises the permitted request rate.
func New(email, apiKey, baseURL string, opts ...Option) (*Client, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("entrez contact email required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		email:      email,
		apiKey:     strings.TrimSpace(apiKey),
		tool:       "taxid",
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search issues an esearch against the taxonomy database and returns candidate
// TaxIDs in service order, capped at retMax.
func (c *Client) Search(ctx context.Context, term string, retMax int) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("search term must not be empty")
	}
	if retMax <= 0 {
		retMax = 20
	}

	params := c.commonParams()
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(retMax))

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var payload searchResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	return payload.ESearchResult.IDList, nil
}

// FetchRank retrieves the full taxonomy record for a TaxID and returns its
// rank field (for example "species" or "genus").
func (c *Client) FetchRank(ctx context.Context, taxID string) (string, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return "", errors.New("taxid must not be empty")
	}

	params := c.commonParams()
	params.Set("id", taxID)
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var payload taxaSet
	if err := xml.NewDecoder(body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode efetch response: %w", err)
	}
	if len(payload.Taxa) == 0 {
		return "", fmt.Errorf("efetch returned no taxon for id %s", taxID)
	}
	return payload.Taxa[0].Rank, nil
}

func (c *Client) commonParams() url.Values {
	params := url.Values{}
	params.Set("db", "taxonomy")
	params.Set("email", c.email)
	params.Set("tool", c.tool)
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	return params
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (io.ReadCloser, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse eutils url: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Endpoint: path, Code: resp.StatusCode}
	}
	return resp.Body, nil
}
