// Package sheets keeps the session log and the session cache in a Google Spreadsheet.
// Completed sessions are appended as rows to the log sheet; the cache is one JSON document
// stored in a single cell.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pscheid92/playtime/internal/domain"
	"github.com/pscheid92/playtime/internal/platform/retry"
)

// maxCellChars is the Sheets limit for the contents of one cell.
const maxCellChars = 50000

var (
	_ domain.SessionSink  = (*SessionLog)(nil)
	_ domain.SessionStore = (*SessionStore)(nil)
)

type Config struct {
	SpreadsheetID string
	LogSheet      string
	CacheRange    string
	// Location renders the local time columns of the log.
	Location *time.Location
	Retry    retry.Policy
}

// NewService builds an authenticated Sheets client from a service account key.
// Extra options are appended, which lets tests point the client at a fake endpoint.
func NewService(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*sheets.Service, error) {
	base := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if len(credentialsJSON) > 0 {
		base = append(base, option.WithCredentialsJSON(credentialsJSON))
	}
	svc, err := sheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return svc, nil
}

// SessionLog appends one row per completed session, in domain.RecordColumns order.
type SessionLog struct {
	values *sheets.SpreadsheetsValuesService
	cfg    Config
}

func NewSessionLog(svc *sheets.Service, cfg Config) *SessionLog {
	return &SessionLog{values: svc.Spreadsheets.Values, cfg: cfg}
}

func (l *SessionLog) Append(ctx context.Context, records []domain.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = r.Row(l.cfg.Location)
	}

	// Appends are not idempotent. Only errors the API answered with are retried;
	// a timeout or dropped connection may have landed the rows already.
	// RAW keeps player-controlled names from being parsed as formulas.
	target := sheetRange(l.cfg.LogSheet)
	err := retry.DoVoid(ctx, withLogging(ctx, l.cfg.Retry, "append"), classifyAppend, func() error {
		_, err := l.values.Append(l.cfg.SpreadsheetID, target, &sheets.ValueRange{Values: rows}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", l.cfg.LogSheet, err)
	}
	return nil
}

// SessionStore reads and writes the cache as a JSON object in one cell.
type SessionStore struct {
	values *sheets.SpreadsheetsValuesService
	cfg    Config
}

func NewSessionStore(svc *sheets.Service, cfg Config) *SessionStore {
	return &SessionStore{values: svc.Spreadsheets.Values, cfg: cfg}
}

// Load returns an empty map when the cell is blank.
func (s *SessionStore) Load(ctx context.Context) (map[domain.EntityID]domain.SessionState, error) {
	resp, err := retry.Do(ctx, withLogging(ctx, s.cfg.Retry, "read cache"), classify, func() (*sheets.ValueRange, error) {
		return s.values.Get(s.cfg.SpreadsheetID, s.cfg.CacheRange).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache cell %s: %w", s.cfg.CacheRange, err)
	}

	states := make(map[domain.EntityID]domain.SessionState)
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return states, nil
	}
	cell, _ := resp.Values[0][0].(string)
	if strings.TrimSpace(cell) == "" {
		return states, nil
	}
	if err := json.Unmarshal([]byte(cell), &states); err != nil {
		return nil, fmt.Errorf("invalid cache JSON in %s: %w", s.cfg.CacheRange, err)
	}
	return states, nil
}

func (s *SessionStore) Save(ctx context.Context, states map[domain.EntityID]domain.SessionState) error {
	data, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if len(data) > maxCellChars {
		return fmt.Errorf("cache is %d characters, cell limit is %d", len(data), maxCellChars)
	}

	body := &sheets.ValueRange{Values: [][]any{{string(data)}}}
	err = retry.DoVoid(ctx, withLogging(ctx, s.cfg.Retry, "write cache"), classify, func() error {
		_, err := s.values.Update(s.cfg.SpreadsheetID, s.cfg.CacheRange, body).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write cache cell %s: %w", s.cfg.CacheRange, err)
	}
	return nil
}

// sheetRange quotes a sheet title for A1 notation.
func sheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// classify maps Sheets API errors onto retry actions. Quota errors wait longer.
func classify(err error) retry.Action {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return retry.Retry
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return retry.After
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return retry.Stop
	default:
		return retry.Retry
	}
}

// classifyAppend is classify without the transport retry: an error with no API
// response leaves the append outcome unknown.
func classifyAppend(err error) retry.Action {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return retry.Stop
	}
	return classify(err)
}

func withLogging(ctx context.Context, p retry.Policy, op string) retry.Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Sheets call failed, retrying", "operation", op, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}
	return p
}
