// Package airtable reads records from a single Airtable table.
package airtable

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"ipvops/internal/core"
	"ipvops/internal/fetch"
	"ipvops/internal/log"
	"ipvops/internal/metrics"
)

const (
	DefaultAPIURL    = "https://api.airtable.com/v0"
	DefaultDateField = "Date"
	DefaultMaxPages  = 1000
)

// Config identifies the table to read and how to authenticate.
type Config struct {
	BaseID    string
	TableName string
	Token     string

	// APIURL is the versioned API root, without trailing slash.
	APIURL string
	// DateField is the field GetByMonth filters on.
	DateField string
	// InclusiveStart includes records dated on the first day of the month.
	InclusiveStart bool
	// MaxPages bounds FetchAllRecords. Zero means DefaultMaxPages.
	MaxPages int
}

// Client issues list-records requests against one base and table.
type Client struct {
	cfg     Config
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// New validates cfg and builds a client. It never touches the network.
func New(cfg Config, opts ...fetch.Option) (*Client, error) {
	cfg.BaseID = strings.TrimSpace(cfg.BaseID)
	cfg.TableName = strings.TrimSpace(cfg.TableName)
	cfg.Token = strings.TrimSpace(cfg.Token)

	var missing []string
	if cfg.BaseID == "" {
		missing = append(missing, "AIRTABLE_BASE_ID")
	}
	if cfg.TableName == "" {
		missing = append(missing, "AIRTABLE_TABLE_NAME")
	}
	if cfg.Token == "" {
		missing = append(missing, "AIRTABLE_PAT")
	}
	if len(missing) > 0 {
		return nil, &core.ConfigError{Component: "airtable", Missing: missing}
	}

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if strings.TrimSpace(cfg.DateField) == "" {
		cfg.DateField = DefaultDateField
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}

	logger := slog.Default().With(log.FieldComponent, log.ComponentAirtable)
	base := []fetch.Option{
		fetch.WithHeader("Authorization", "Bearer "+cfg.Token),
		fetch.WithLogger(logger),
	}
	return &Client{
		cfg:     cfg,
		fetcher: fetch.New("airtable", append(base, opts...)...),
		logger:  logger,
	}, nil
}

func (c *Client) tableURL() string {
	return c.cfg.APIURL + "/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(c.cfg.TableName)
}

type listResponse struct {
	Records []core.Record `json:"records"`
	Offset  string        `json:"offset"`
}

// GetTableData fetches a single page. MaxRecords is clamped to 1..100.
func (c *Client) GetTableData(ctx context.Context, q core.PageQuery) (core.Page, error) {
	params := url.Values{}
	params.Set("maxRecords", strconv.Itoa(core.ClampPageSize(q.MaxRecords)))
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(core.ClampPageSize(q.PageSize)))
	}
	setIf(params, "view", q.View)
	setIf(params, "filterByFormula", q.FilterByFormula)
	setIf(params, "offset", q.Offset)

	var resp listResponse
	if err := c.get(ctx, "list_records", c.tableURL(), params, &resp); err != nil {
		return core.Page{}, err
	}
	return core.Page{Records: nonNil(resp.Records), Offset: resp.Offset}, nil
}

// FetchAllRecords follows the offset cursor until the last page. Records keep
// arrival order. On failure the records gathered so far are returned with the
// error.
func (c *Client) FetchAllRecords(ctx context.Context, q core.PageQuery) ([]core.Record, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(core.ClampPageSize(q.PageSize)))
	setIf(params, "view", q.View)
	setIf(params, "filterByFormula", q.FilterByFormula)

	all := []core.Record{}
	offset := q.Offset
	for page := 1; ; page++ {
		if page > c.cfg.MaxPages {
			c.logger.ErrorContext(ctx, "Page limit reached", "max_pages", c.cfg.MaxPages, "records", len(all))
			return all, fmt.Errorf("%w: stopped after %d pages", core.ErrPageLimit, c.cfg.MaxPages)
		}

		if offset != "" {
			params.Set("offset", offset)
		} else {
			params.Del("offset")
		}

		var resp listResponse
		if err := c.get(ctx, "list_records", c.tableURL(), params, &resp); err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, resp.Records...)

		c.logger.DebugContext(ctx, "Fetched page", "page", page, "records", len(resp.Records), "total", len(all))
		if resp.Offset == "" {
			return all, nil
		}
		offset = resp.Offset
	}
}

// GetByMonth returns every record whose date field falls in the given month.
// The month is validated before any request is made.
func (c *Client) GetByMonth(ctx context.Context, year, month int, q core.PageQuery) ([]core.Record, error) {
	filter, err := core.NewMonthFilter(c.cfg.DateField, year, month)
	if err != nil {
		return nil, err
	}
	filter.InclusiveStart = c.cfg.InclusiveStart

	q.FilterByFormula = filter.Formula()
	q.Offset = ""
	c.logger.InfoContext(ctx, "Fetching records by month",
		"year", year,
		"month", month,
		"start", filter.StartDate(),
		"end", filter.EndDate())
	return c.FetchAllRecords(ctx, q)
}

func (c *Client) get(ctx context.Context, operation, rawURL string, params url.Values, out any) error {
	err := c.fetcher.GetJSON(ctx, rawURL, params, out)
	metrics.UpstreamRequestsTotal.WithLabelValues("airtable", operation, metrics.Outcome(err)).Inc()
	return err
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func nonNil(rs []core.Record) []core.Record {
	if rs == nil {
		return []core.Record{}
	}
	return rs
}
