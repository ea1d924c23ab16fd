// Package google implements the ledger export port against the Google
// Sheets API, authenticated with a previously authorized OAuth token
// (see cmd/oauth-init).
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finledger/internal/config"
	"finledger/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.LedgerWriter = (*Client)(nil)

// New builds a Sheets-backed ledger writer from the export settings in
// cfg. It fails when the spreadsheet ID is unset; callers should treat
// an empty SheetsSpreadsheetID as "export disabled" and not call New.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.SheetsSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	oauthCfg, err := loadOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := oauthCfg.Client(ctx, token)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheetName := cfg.SheetsSheetName
	if sheetName == "" {
		sheetName = "Ledger"
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SheetsSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func loadOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	var raw []byte
	switch {
	case cfg.SheetsOAuthClientJSON != "":
		raw = []byte(cfg.SheetsOAuthClientJSON)
	case cfg.SheetsOAuthClientFile != "":
		b, err := os.ReadFile(cfg.SheetsOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read OAuth client file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing OAuth client credentials")
	}
	oc, err := googleoauth.ConfigFromJSON(raw, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client config: %w", err)
	}
	return oc, nil
}

func loadToken(cfg *config.Config) (*oauth2.Token, error) {
	var raw []byte
	switch {
	case cfg.SheetsOAuthTokenJSON != "":
		raw = []byte(cfg.SheetsOAuthTokenJSON)
	case cfg.SheetsOAuthTokenFile != "":
		b, err := os.ReadFile(cfg.SheetsOAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("read OAuth token file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing OAuth token")
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}
	return &token, nil
}

// AppendEntry writes the entry to the first empty row of the ledger
// sheet. The sheet layout is A:F = date, user, type, category,
// description, amount.
func (c *Client) AppendEntry(ctx context.Context, e export.Entry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:F%d", c.sheetName, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.Date.String(),
		e.Username,
		string(e.Type),
		e.Category,
		e.Description,
		e.Amount.Decimal(),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}
