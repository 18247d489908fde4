package airtable

import (
	"context"
	"net/url"

	"ipvops/internal/core"
)

type tablesResponse struct {
	Tables []core.Table `json:"tables"`
}

// metaURL derives the meta endpoint from the configured API root.
func (c *Client) metaURL() string {
	return c.cfg.APIURL + "/meta/bases/" + url.PathEscape(c.cfg.BaseID) + "/tables"
}

// ListTables lists the tables of the configured base.
func (c *Client) ListTables(ctx context.Context) ([]core.Table, error) {
	var resp tablesResponse
	if err := c.get(ctx, "list_tables", c.metaURL(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tables == nil {
		return []core.Table{}, nil
	}
	return resp.Tables, nil
}

// Ping requests a single record, which proves the token can read the table.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetTableData(ctx, core.PageQuery{MaxRecords: 1})
	return err
}
