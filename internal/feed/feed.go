// Package feed talks to the mod portal's public HTTP API and normalizes
// listing entries into mods.Record values.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"modwatch/internal/mods"
	"modwatch/pkg/logx"
)

const (
	DefaultBaseURL   = "https://mods.factorio.com"
	DefaultAssetsURL = "https://assets-mod.factorio.com"

	// The portal serves this path for mods that never uploaded a thumbnail.
	placeholderThumbnail = "/assets/.thumb.png"
)

var (
	// ErrUnavailable marks a failed portal request (transport error or
	// non-success status). Callers retry at the next cycle, never fatally.
	ErrUnavailable = errors.New("mod portal unavailable")

	// ErrNotFound marks a detail lookup for a mod the portal does not know.
	ErrNotFound = errors.New("mod not found")
)

type Config struct {
	BaseURL   string
	AssetsURL string
	Timeout   time.Duration
	RetryMax  uint64
}

type Client struct {
	http     *http.Client
	base     string
	assets   string
	retryMax uint64
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	assets := cfg.AssetsURL
	if assets == "" {
		assets = DefaultAssetsURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		base:     base,
		assets:   assets,
		retryMax: cfg.RetryMax,
		log:      log,
	}
}

type listResponse struct {
	Results []rawEntry `json:"results"`
}

type rawEntry struct {
	Name          string      `json:"name"`
	Title         string      `json:"title"`
	Owner         string      `json:"owner"`
	LatestRelease *rawRelease `json:"latest_release"`
}

type rawRelease struct {
	ReleasedAt string `json:"released_at"`
	Version    string `json:"version"`
}

// Page fetches one listing page sorted by most recently updated first.
// Entries without a published release are skipped; they are not actionable.
func (c *Client) Page(ctx context.Context, page, size int) ([]mods.Record, error) {
	return c.list(ctx, strconv.Itoa(size), page)
}

// All fetches the full unpaginated listing. Used once, to seed an empty
// snapshot store without a notification storm.
func (c *Client) All(ctx context.Context) ([]mods.Record, error) {
	return c.list(ctx, "max", 0)
}

func (c *Client) list(ctx context.Context, pageSize string, page int) ([]mods.Record, error) {
	q := url.Values{}
	q.Set("page_size", pageSize)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
		q.Set("sort", "updated_at")
		q.Set("sort_order", "desc")
	}
	var list listResponse
	if err := c.getJSON(ctx, c.base+"/api/mods?"+q.Encode(), &list); err != nil {
		return nil, err
	}
	out := make([]mods.Record, 0, len(list.Results))
	for _, e := range list.Results {
		if e.LatestRelease == nil {
			continue
		}
		out = append(out, mods.Record{
			Name:       e.Name,
			ReleasedAt: e.LatestRelease.ReleasedAt,
			Title:      e.Title,
			Owner:      e.Owner,
			Version:    e.LatestRelease.Version,
		})
	}
	return out, nil
}

// Detail is the per-mod record served by the detail endpoint. It carries
// fields the listing omits (summary, download count, thumbnail path).
type Detail struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	Owner          string `json:"owner"`
	Summary        string `json:"summary"`
	DownloadsCount int64  `json:"downloads_count"`
	Thumbnail      string `json:"thumbnail"`
}

func (c *Client) Detail(ctx context.Context, name string) (Detail, error) {
	var d Detail
	if err := c.getJSON(ctx, c.base+"/api/mods/"+url.PathEscape(name), &d); err != nil {
		return Detail{}, err
	}
	return d, nil
}

// Thumbnail resolves the full asset URL of a mod's thumbnail, or "" when
// the mod has none (including the portal's placeholder image).
func (c *Client) Thumbnail(ctx context.Context, name string) (string, error) {
	d, err := c.Detail(ctx, name)
	if err != nil {
		return "", err
	}
	if d.Thumbnail == "" || d.Thumbnail == placeholderThumbnail {
		return "", nil
	}
	return c.assets + d.Thumbnail, nil
}

var errStatusNotFound = errors.New("status 404")

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(errStatusNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	notify := func(err error, wait time.Duration) {
		c.log.Debug("portal request retry scheduled",
			logx.String("url", rawURL), logx.Duration("wait", wait), logx.Err(err))
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.retryMax), ctx), notify)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, errStatusNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
