package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// WikidataConfig configures WikidataClient.
type WikidataConfig struct {
	// Endpoint is the MediaWiki action API, e.g. https://www.wikidata.org/w/api.php
	Endpoint string
	// EntityData is the Special:EntityData base URL
	EntityData string
	UserAgent  string
	Timeout    time.Duration
}

// WikidataClient searches and fetches Wikidata items over HTTP.
type WikidataClient struct {
	endpoint   string
	entityData string
	userAgent  string
	httpClient *http.Client
}

// NewWikidataClient creates a Wikidata client
func NewWikidataClient(config WikidataConfig) (*WikidataClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint URL is required")
	}
	if config.EntityData == "" {
		return nil, fmt.Errorf("entity data URL is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WikidataClient{
		endpoint:   config.Endpoint,
		entityData: strings.TrimRight(config.EntityData, "/"),
		userAgent:  config.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type searchResponse struct {
	Search []struct {
		ID string `json:"id"`
	} `json:"search"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

// Search runs wbsearchentities for items.
func (c *WikidataClient) Search(ctx context.Context, query, lang string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("format", "json")
	params.Set("language", lang)
	params.Set("uselang", lang)
	params.Set("type", "item")
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.get(ctx, c.endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search %q (%s) failed: %w", query, lang, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("search %q (%s) failed: %s: %s", query, lang, resp.Error.Code, resp.Error.Info)
	}

	ids := make([]string, 0, len(resp.Search))
	for _, item := range resp.Search {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

type entityDataResponse struct {
	Entities map[string]json.RawMessage `json:"entities"`
}

// Fetch downloads the JSON representation of an item. A redirected item comes
// back as its redirect target.
func (c *WikidataClient) Fetch(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
	if id == "" || id == types.NIL {
		return nil, types.NewNotFoundError(id)
	}

	var resp entityDataResponse
	err := c.get(ctx, fmt.Sprintf("%s/%s.json", c.entityData, url.PathEscape(id)), &resp)
	if err != nil {
		var se *utils.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusBadRequest) {
			return nil, types.NewNotFoundError(id)
		}
		return nil, fmt.Errorf("fetch %s failed: %w", id, err)
	}

	raw, ok := resp.Entities[id]
	if !ok {
		if len(resp.Entities) != 1 {
			return nil, types.NewNotFoundError(id)
		}
		for _, only := range resp.Entities {
			raw = only
		}
	}

	var record types.KnowledgeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}
	if record.ID == "" {
		return nil, types.NewNotFoundError(id)
	}
	return &record, nil
}

func (c *WikidataClient) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &utils.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
