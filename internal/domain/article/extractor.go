package article

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
)

// Article is the readable content extracted from a web page.
type Article struct {
	Title string
	Text  string
}

// Extractor downloads a page and extracts its primary article text.
type Extractor struct {
	client    *http.Client
	userAgent string
	logger    *logging.Logger
}

// NewExtractor builds an Extractor. A zero FetchTimeout disables the
// download timeout.
func NewExtractor(cfg config.ArticleConfig, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Extractor{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Extract fetches rawURL and returns its title and readable text. Fetch
// failures and extraction failures carry distinct error kinds so callers can
// report them separately.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	pageURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return Article{}, platformerrors.Wrap(platformerrors.KindFetch, "article.extract",
			"invalid url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Article{}, platformerrors.Wrap(platformerrors.KindFetch, "article.extract",
			"failed to build request", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Article{}, platformerrors.Wrap(platformerrors.KindFetch, "article.extract",
			"failed to fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Article{}, platformerrors.New(platformerrors.KindFetch, "article.extract",
			fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, rawURL))
	}

	parsed, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return Article{}, platformerrors.Wrap(platformerrors.KindExtract, "article.extract",
			"readability failed", err)
	}

	text := strings.TrimSpace(parsed.TextContent)
	if text == "" {
		return Article{}, platformerrors.New(platformerrors.KindExtract, "article.extract",
			"no text content extracted")
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = "Title not found"
	}

	e.logger.DebugTag("Article", "extracted %d chars from %s", len(text), rawURL)
	return Article{Title: title, Text: text}, nil
}
