// Package sheets reads the public registration spreadsheet. Access is
// read-only: sign-ups happen in the Google form, the site only counts them.
package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

type Client struct {
	read          func(ctx context.Context, rng string) ([][]interface{}, error)
	spreadsheetID string
	rng           string
}

func New(ctx context.Context, serviceAccountJSONPath, spreadsheetID, rng string) (*Client, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, err
	}
	read := func(ctx context.Context, rng string) ([][]interface{}, error) {
		resp, err := srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
	return newWithReader(read, spreadsheetID, rng), nil
}

func newWithReader(read func(context.Context, string) ([][]interface{}, error), spreadsheetID, rng string) *Client {
	if rng == "" {
		rng = "A:Z"
	}
	return &Client{read: read, spreadsheetID: spreadsheetID, rng: rng}
}

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

// RegistrationCount returns the number of filled rows below the header row.
func (c *Client) RegistrationCount(ctx context.Context) (int, error) {
	values, err := c.read(ctx, c.rng)
	if err != nil {
		return 0, fmt.Errorf("sheets: read %s: %w", c.rng, err)
	}
	n := 0
	// header row at index 0
	for i := 1; i < len(values); i++ {
		if !blank(values[i]) {
			n++
		}
	}
	return n, nil
}

func blank(row []interface{}) bool {
	for i := range row {
		if strings.TrimSpace(get(row, i)) != "" {
			return false
		}
	}
	return true
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
