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

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finca/internal/sheets"
)

// DefaultSheetName is the tab holding the ledger.
const DefaultSheetName = "Libro"

var _ sheets.Mirror = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *slog.Logger
}

// New creates a Sheets client authenticated with service account credentials
// and makes sure the ledger header row is present.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c := NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger)
	if err := c.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithService wraps an existing service. An empty sheet name selects DefaultSheetName.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *slog.Logger) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheetName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, logger: logger}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between worker messages.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// EnsureHeader writes the column titles when row 1 does not already carry them.
func (c *Client) EnsureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A1:H1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && headerMatches(resp.Values[0]) {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{headerValues()}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1:H1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	c.logger.InfoContext(ctx, "Wrote ledger header", "sheet", c.sheet)
	return nil
}

func (c *Client) AppendRow(ctx context.Context, r sheets.Row) (string, error) {
	if r.ID == "" {
		return "", errors.New("append row: missing id")
	}
	idx, err := c.findRow(ctx, r.ID)
	if err != nil {
		return "", err
	}
	if idx >= 0 {
		c.logger.DebugContext(ctx, "Ledger row already present", "id", r.ID, "row", idx+1)
		return c.rng(fmt.Sprintf("A%d:H%d", idx+1, idx+1)), nil
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{rowValues(r)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A:H"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row %s: %w", r.ID, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Appended ledger row", "id", r.ID, "kind", r.Kind, "range", ref)
	return ref, nil
}

// DeleteRow removes the row whose column A equals id. A row that is already
// gone is treated as deleted.
func (c *Client) DeleteRow(ctx context.Context, id string) error {
	idx, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if idx < 0 {
		c.logger.DebugContext(ctx, "Ledger row already absent", "id", id)
		return nil
	}
	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(idx),
					EndIndex:        int64(idx + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %s: %w", id, err)
	}
	c.logger.DebugContext(ctx, "Deleted ledger row", "id", id, "row", idx+1)
	return nil
}

// AddAttachment appends url to the attachments column of row id.
func (c *Client) AddAttachment(ctx context.Context, id, url string) error {
	values, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	idx := findRowIndex(values, id)
	if idx < 0 {
		return fmt.Errorf("add attachment to %s: %w", id, sheets.ErrRowNotFound)
	}
	current := cellString(values[idx], colAttachments)
	if (sheets.Row{Attachments: current}).HasAttachment(url) {
		return nil
	}
	cell := fmt.Sprintf("H%d", idx+1)
	vr := &gsheet.ValueRange{Values: [][]interface{}{{strings.TrimSpace(current + " " + url)}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng(cell), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("add attachment to %s: %w", id, err)
	}
	return nil
}

// ReadRows returns every ledger row below the header.
func (c *Client) ReadRows(ctx context.Context) ([]sheets.Row, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return parseRows(values)
}

func (c *Client) readAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:H")).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return resp.Values, nil
}

func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return -1, err
	}
	return findRowIndex(values, id), nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("%s!%s", c.sheet, cells)
}
