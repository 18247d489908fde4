package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ipvops/internal/core"
	"ipvops/internal/log"
	"ipvops/internal/metrics"
	ports "ipvops/internal/sheets"
)

// DefaultCredentialsFile is read when no inline credentials are configured.
const DefaultCredentialsFile = "credentials.json"

// Config selects the spreadsheet and the service account used to read it.
type Config struct {
	SpreadsheetID string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *slog.Logger
}

// Ensure interface conformance
var (
	_ ports.RangeReader = (*Client)(nil)
	_ ports.Pinger      = (*Client)(nil)
)

// New creates a read-only Sheets client authenticated with a service account.
// Missing identifiers and unreadable credentials are reported as
// *core.ConfigError before any API call.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, &core.ConfigError{Component: "sheets", Missing: []string{"GOOGLE_SHEET_ID"}}
	}

	credentialsJSON, err := readCredentials(ctx, cfg)
	if err != nil {
		return nil, &core.ConfigError{
			Component: "sheets",
			Missing:   []string{"GOOGLE_CREDENTIALS_FILE"},
			Err:       err,
		}
	}

	svc, err := newSheetsService(ctx, credentialsJSON)
	if err != nil {
		return nil, &core.ConfigError{Component: "sheets", Err: err}
	}
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an existing service. Tests point it at a local server.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        slog.Default().With(log.FieldComponent, log.ComponentSheets),
	}
}

func readCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	if inline := strings.TrimSpace(cfg.CredentialsJSON); inline != "" {
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	}

	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = DefaultCredentialsFile
	}
	slog.InfoContext(ctx, "Reading credentials from file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// newSheetsService builds a Sheets service from service account JSON with the
// read-only scope.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	jwtCfg, err := google.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// The oauth2 transport wraps whatever client is stored in the context.
	base := context.WithValue(context.Background(), oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := jwtCfg.Client(base)
	httpClient.Timeout = 60 * time.Second

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"client_email", jwtCfg.Email,
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// GetRange issues one values.get call and reshapes the result: the first row
// is the header, each further row becomes a record. An empty range yields an
// empty slice.
func (c *Client) GetRange(ctx context.Context, rng string) ([]core.SheetRow, error) {
	rng = strings.TrimSpace(rng)
	if rng == "" {
		return nil, core.Validationf("range is required")
	}

	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	metrics.UpstreamRequestsTotal.WithLabelValues("sheets", "get_range", metrics.Outcome(err)).Inc()
	if err != nil {
		err = classify(err)
		c.logger.ErrorContext(ctx, "Failed to read range", "range", rng, "error", err)
		return nil, err
	}

	rows := core.RowsFromValues(resp.Values)
	c.logger.InfoContext(ctx, "Read range",
		"range", rng,
		"rows", len(rows),
		"duration", time.Since(start).String())
	return rows, nil
}

// Ping fetches the spreadsheet id only, which proves auth and access.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps Sheets API failures onto the shared error kinds.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := core.ErrPermanent
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500 {
			kind = core.ErrTransient
		}
		body := gerr.Message
		if body == "" {
			body = gerr.Body
		}
		if len(body) > 500 {
			body = body[:500]
		}
		return &core.FetchError{Kind: kind, StatusCode: gerr.Code, Body: body, Attempts: 1, Err: err}
	}
	return &core.FetchError{Kind: core.ErrTransient, Attempts: 1, Err: err}
}
