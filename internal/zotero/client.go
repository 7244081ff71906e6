package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/internal/httputil"
)

const (
	apiVersion  = "3"
	maxPageSize = 100
	maxBackoff  = 60 * time.Second
)

// StatusError is a non-success response from the Zotero API.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zotero: %s returned %d: %s", e.URL, e.Status, e.Body)
}

// Client talks to the Zotero web API for one library.
type Client struct {
	http      *http.Client
	baseURL   string
	prefix    string
	apiKey    string
	locale    string
	style     string
	batchSize int
	start     int
	end       int
}

// NewClient builds a client from the zotero configuration section.
func NewClient(cfg config.ZoteroConfig) *Client {
	kind := "groups"
	if cfg.LibraryType == "user" {
		kind = "users"
	}

	batch := cfg.BatchSize
	if batch <= 0 || batch > maxPageSize {
		batch = maxPageSize
	}

	c := &Client{
		http:      httputil.NewClient(cfg.ConnTimeout, cfg.ReadTimeout),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		prefix:    fmt.Sprintf("/%s/%s", kind, cfg.LibraryID),
		apiKey:    cfg.APIKey,
		locale:    cfg.Locale,
		style:     cfg.CSLStyle,
		batchSize: batch,
		start:     cfg.Start,
		end:       cfg.End,
	}

	log.Printf("[ZOTERO] library   = [%s%s]", c.baseURL, c.prefix)
	log.Printf("[ZOTERO] locale    = [%s]", c.locale)
	log.Printf("[ZOTERO] style     = [%s]", c.style)
	log.Printf("[ZOTERO] batchSize = [%d]", c.batchSize)

	return c
}

// Collections returns every collection of the library.
func (c *Client) Collections(ctx context.Context) ([]composer.Collection, error) {
	type apiCollection struct {
		Key  string `json:"key"`
		Data struct {
			Name             string `json:"name"`
			ParentCollection any    `json:"parentCollection"` // false or a key
		} `json:"data"`
	}

	var collections []composer.Collection

	_, err := c.paginate(ctx, c.prefix+"/collections", url.Values{}, 0, 0, func(body []byte) (int, error) {
		var page []apiCollection
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("zotero: decoding collections: %w", err)
		}

		for _, ac := range page {
			parent, _ := ac.Data.ParentCollection.(string)
			collections = append(collections, composer.Collection{Key: ac.Key, Name: ac.Data.Name, ParentKey: parent})
		}

		return len(page), nil
	})
	if err != nil {
		return nil, err
	}

	return collections, nil
}

// Items returns the raw records of every item of the library, top-level
// items and their children alike, along with the library version. Formats
// are Zotero include formats requested in addition to data.
func (c *Client) Items(ctx context.Context, formats []string) ([]map[string]any, int, error) {
	include := []string{"data"}
	for _, f := range formats {
		if f != "data" {
			include = append(include, f)
		}
	}

	params := url.Values{}
	params.Set("include", strings.Join(include, ","))
	params.Set("style", c.style)
	params.Set("locale", c.locale)
	params.Set("sort", "dateAdded")

	var items []map[string]any

	version, err := c.paginate(ctx, c.prefix+"/items", params, c.start, c.end, func(body []byte) (int, error) {
		var page []map[string]any
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("zotero: decoding items: %w", err)
		}

		items = append(items, page...)

		return len(page), nil
	})
	if err != nil {
		return nil, 0, err
	}

	return items, version, nil
}

// ItemTypes returns the localized labels of the item types.
func (c *Client) ItemTypes(ctx context.Context) (map[string]string, error) {
	params := url.Values{}
	params.Set("locale", c.locale)

	body, _, err := c.get(ctx, "/itemTypes", params)
	if err != nil {
		return nil, err
	}

	var list []struct {
		ItemType  string `json:"itemType"`
		Localized string `json:"localized"`
	}

	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("zotero: decoding item types: %w", err)
	}

	types := make(map[string]string, len(list))
	for _, t := range list {
		types[t.ItemType] = t.Localized
	}

	return types, nil
}

// paginate walks a multi-object endpoint from start until end (0 meaning
// the last object), handing each page to handle. It returns the library
// version reported by the last response.
func (c *Client) paginate(ctx context.Context, path string, params url.Values, start, end int, handle func([]byte) (int, error)) (int, error) {
	version := 0

	for {
		limit := c.batchSize
		if end > 0 && end-start < limit {
			limit = end - start
		}
		if limit <= 0 {
			return version, nil
		}

		params.Set("start", strconv.Itoa(start))
		params.Set("limit", strconv.Itoa(limit))

		body, header, err := c.get(ctx, path, params)
		if err != nil {
			return 0, err
		}

		n, err := handle(body)
		if err != nil {
			return 0, err
		}

		if v, err := strconv.Atoi(header.Get("Last-Modified-Version")); err == nil {
			version = v
		}

		total, err := strconv.Atoi(header.Get("Total-Results"))
		if err != nil {
			total = start + n
		}

		start += n

		log.Debugf("[ZOTERO] %s: %d/%d", path, start, total)

		if n == 0 || start >= total {
			return version, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, http.Header, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("zotero: building request: %w", err)
		}

		req.Header.Set("Zotero-API-Version", apiVersion)
		if c.apiKey != "" {
			req.Header.Set("Zotero-API-Key", c.apiKey)
		}

		start := time.Now()
		res, err := c.http.Do(req)
		elapsedMS := int64(time.Since(start) / time.Millisecond)

		if err != nil {
			log.Printf("[ZOTERO] ERROR: GET %s failed (%d): %s. Elapsed Time: %d (ms)", path, httputil.StatusForError(err), err.Error(), elapsedMS)
			return nil, nil, fmt.Errorf("zotero: GET %s: %w", path, err)
		}

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("zotero: reading %s: %w", path, err)
		}

		wait := backoff(res.Header)

		if (res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusServiceUnavailable) && attempt == 0 {
			if wait == 0 {
				wait = 5 * time.Second
			}
			log.Printf("[ZOTERO] %s: status %d, retrying in %s", path, res.StatusCode, wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, nil, err
			}
			continue
		}

		if res.StatusCode != http.StatusOK {
			return nil, nil, &StatusError{Status: res.StatusCode, URL: path, Body: strings.TrimSpace(string(body))}
		}

		log.Debugf("[ZOTERO] GET %s: %d bytes. Elapsed Time: %d (ms)", path, len(body), elapsedMS)

		// the server asks us to slow down; honour it before the next call
		if wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return nil, nil, err
			}
		}

		return body, res.Header, nil
	}
}

func backoff(h http.Header) time.Duration {
	for _, name := range []string{"Backoff", "Retry-After"} {
		if secs, err := strconv.Atoi(h.Get(name)); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, maxBackoff)
		}
	}

	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
