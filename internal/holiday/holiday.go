package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Reserved colors for holiday entries; user palettes never use them.
const (
	Color       = "#EF4444"
	BorderColor = "#8B0000"
)

const defaultBaseURL = "https://date.nager.at/api/v3"

type Config struct {
	BaseURL string
	Region  string
}

// Event is the shape holidays are served and merged in: a full-day,
// non-editable entry with no owner.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Color     string    `json:"color"`
	Border    string    `json:"borderColor"`
	IsHoliday bool      `json:"isHoliday"`
}

type publicHoliday struct {
	Date      string `json:"date"` // YYYY-MM-DD
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

type Fetcher struct {
	baseURL string
	client  *http.Client
}

func NewFetcher(config Config) *Fetcher {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch returns the public holidays of a year mapped to full-day
// events. Callers treat any error as "no holidays this session".
func (f *Fetcher) Fetch(ctx context.Context, year int, region string) ([]Event, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", f.baseURL, year, region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build holidays request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holidays: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holidays endpoint answered %s", resp.Status)
	}

	var holidays []publicHoliday
	if err := json.NewDecoder(resp.Body).Decode(&holidays); err != nil {
		return nil, fmt.Errorf("failed to decode holidays: %w", err)
	}

	events := make([]Event, 0, len(holidays))
	for _, h := range holidays {
		day, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse holiday date %q: %w", h.Date, err)
		}
		title := h.LocalName
		if title == "" {
			title = h.Name
		}
		events = append(events, Event{
			ID:        "holiday-" + h.Date,
			Title:     title,
			StartTime: day,
			EndTime:   day.Add(24*time.Hour - time.Second),
			Color:     Color,
			Border:    BorderColor,
			IsHoliday: true,
		})
	}
	return events, nil
}
