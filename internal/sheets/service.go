package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"billing/internal/logger"
)

// ErrNoCredentials is returned when neither an API key nor service account
// credentials are available.
var ErrNoCredentials = errors.New("no Google credentials: set GOOGLE_SHEETS_API_KEY, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SheetID  string
	SheetURL string // used when SheetID is empty
	APIKey   string // public sheets; service account credentials otherwise

	// Endpoint overrides the API base URL, for tests.
	Endpoint string
}

// Service reads value ranges from one spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewService creates a read-only Google Sheets service
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("sheets")

	spreadsheetID := cfg.SheetID
	if spreadsheetID == "" {
		id, err := extractSpreadsheetID(cfg.SheetURL)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
		}
		spreadsheetID = id
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Using spreadsheet")

	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	if cfg.APIKey != "" {
		return append(opts, option.WithAPIKey(cfg.APIKey)), nil
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds = b
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, ErrNoCredentials
	}

	jwtConfig, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return append(opts, option.WithHTTPClient(jwtConfig.Client(ctx))), nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// SpreadsheetID returns the ID of the spreadsheet being read.
func (s *Service) SpreadsheetID() string {
	return s.spreadsheetID
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}
