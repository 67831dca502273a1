package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kart-io/docchat/pkg/utils/httpclient"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// RemoteParser extracts text from binary formats (pdf, doc, docx) by calling
// an extraction service over HTTP.
type RemoteParser struct {
	serviceURL string
	client     *httpclient.Client
	pingClient *http.Client
}

// NewRemoteParser creates a parser that calls the extraction service at
// serviceURL.
func NewRemoteParser(serviceURL string, timeout time.Duration) *RemoteParser {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteParser{
		serviceURL: serviceURL,
		client:     httpclient.NewClient(timeout, 2),
		pingClient: &http.Client{Timeout: 5 * time.Second},
	}
}

var _ Parser = (*RemoteParser)(nil)

type parseResponse struct {
	Text      string   `json:"text"`
	Pages     int      `json:"pages"`
	PageTexts []string `json:"page_texts,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Parse sends the raw file to the extraction service and returns its text.
func (p *RemoteParser) Parse(ctx context.Context, filename string, data []byte) (*Result, error) {
	endpoint := fmt.Sprintf("%s/parse?filename=%s", p.serviceURL, url.QueryEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var result parseResponse
	if err := p.client.DoJSON(req, &result); err != nil {
		return nil, fmt.Errorf("extraction service failed: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("extraction service rejected %q: %s", filename, result.Error)
	}

	pageTexts := result.PageTexts
	if len(pageTexts) == 0 {
		if result.Text == "" {
			return nil, fmt.Errorf("extraction service returned no text for %q", filename)
		}
		pageTexts = []string{result.Text}
	}

	pages := result.Pages
	if pages == 0 {
		pages = len(pageTexts)
	}

	return &Result{
		PageTexts: pageTexts,
		Pages:     pages,
	}, nil
}

// Ping checks the extraction service health endpoint.
func (p *RemoteParser) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.pingClient.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body parseResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("extraction service unhealthy, status code %d", resp.StatusCode)
	}
	return nil
}
