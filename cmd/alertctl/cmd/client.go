package cmd

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/sorare-alert-bot/internal/commands"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

// Client talks to the bot's management API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	// matches the server default for SERVER_IMPORT_TIMEOUT
	c.SetTimeout(30 * time.Minute)
	c.SetHeader("Accept", "application/json")
	return &Client{http: c}
}

type apiError struct {
	Error string `json:"error"`
}

type Status struct {
	Status       string         `json:"status"`
	State        string         `json:"state"`
	LastScan     *time.Time     `json:"lastScan"`
	TotalScans   int64          `json:"totalScans"`
	AlertsSent   int64          `json:"alertsSent"`
	Errors       int64          `json:"errors"`
	SeenListings int64          `json:"seenListings"`
	Watchlist    map[string]int `json:"watchlist"`
}

type Prices struct {
	Kind    models.Kind         `json:"kind"`
	Player  string              `json:"player"`
	Rarity  models.Rarity       `json:"rarity"`
	Trend   history.Trend       `json:"trend"`
	History []models.PricePoint `json:"history"`
	Sales   []models.SaleRecord `json:"sales"`
}

type mutation struct {
	Entity    *models.WatchEntity `json:"entity"`
	Removed   int                 `json:"removed"`
	Watchlist watchlist.Snapshot  `json:"watchlist"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode())
		}
		return fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode())
	}
	return nil
}

func (c *Client) Watchlist(ctx context.Context) (watchlist.Snapshot, error) {
	var snap watchlist.Snapshot
	err := c.do(ctx, resty.MethodGet, "/watchlist/", nil, &snap)
	return snap, err
}

func (c *Client) Add(ctx context.Context, kind models.Kind, slug, name, rarity string, maxPrice *float64) (models.WatchEntity, error) {
	var out mutation
	body := map[string]any{"slug": slug, "name": name, "rarity": rarity, "maxPrice": maxPrice}
	if err := c.do(ctx, resty.MethodPost, "/watchlist/"+string(kind), body, &out); err != nil {
		return models.WatchEntity{}, err
	}
	if out.Entity == nil {
		return models.WatchEntity{}, fmt.Errorf("empty response")
	}
	return *out.Entity, nil
}

func (c *Client) Remove(ctx context.Context, kind models.Kind, slug string) (int, error) {
	var out mutation
	err := c.do(ctx, resty.MethodDelete, "/watchlist/"+string(kind)+"/"+url.PathEscape(slug), nil, &out)
	return out.Removed, err
}

// SetPrice sets a ceiling; nil clears it.
func (c *Client) SetPrice(ctx context.Context, kind models.Kind, slug string, maxPrice *float64) (models.WatchEntity, error) {
	var out mutation
	path := "/watchlist/" + string(kind) + "/" + url.PathEscape(slug) + "/price"
	if err := c.do(ctx, resty.MethodPut, path, map[string]any{"maxPrice": maxPrice}, &out); err != nil {
		return models.WatchEntity{}, err
	}
	if out.Entity == nil {
		return models.WatchEntity{}, fmt.Errorf("empty response")
	}
	return *out.Entity, nil
}

func (c *Client) Scan(ctx context.Context) error {
	return c.do(ctx, resty.MethodPost, "/scan", nil, nil)
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, resty.MethodGet, "/api/status", nil, &s)
	return s, err
}

func (c *Client) Prices(ctx context.Context, kind, slug, rarity string) (Prices, error) {
	var p Prices
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if rarity != "" {
		q.Set("rarity", rarity)
	}
	path := "/api/prices/" + url.PathEscape(slug)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	err := c.do(ctx, resty.MethodGet, path, nil, &p)
	return p, err
}

func (c *Client) Import(ctx context.Context, slug, rarity string) (scanner.ImportResult, error) {
	var res scanner.ImportResult
	path := "/api/import/" + url.PathEscape(slug)
	if rarity != "" {
		path += "?rarity=" + url.QueryEscape(rarity)
	}
	err := c.do(ctx, resty.MethodPost, path, nil, &res)
	return res, err
}

func (c *Client) ImportAll(ctx context.Context) (scanner.BatchImportResult, error) {
	var res scanner.BatchImportResult
	err := c.do(ctx, resty.MethodPost, "/api/import", nil, &res)
	return res, err
}

func (c *Client) Command(ctx context.Context, text string) (commands.Reply, error) {
	var reply commands.Reply
	err := c.do(ctx, resty.MethodPost, "/api/commands", map[string]string{"text": text}, &reply)
	return reply, err
}
