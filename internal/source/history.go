package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openwaters/crowd-depth/internal/domain"
)

// ErrUnavailable signals that the history provider cannot serve this vessel;
// the caller falls back to the local source.
var ErrUnavailable = errors.New("history provider unavailable")

// HistorySource reads historical observations from an external provider over
// HTTP. It is read-only: live observations keep flowing into whatever store
// the provider itself maintains.
type HistorySource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHistorySource probes the provider and wraps it as a Source.
// Returns ErrUnavailable when the provider is unreachable or does not
// support observation history, so the wiring can fall back.
func NewHistorySource(ctx context.Context, baseURL string, client *http.Client) (*HistorySource, error) {
	if baseURL == "" {
		return nil, ErrUnavailable
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	s := &HistorySource{baseURL: baseURL, httpClient: client}
	if err := s.probe(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, nil
}

func (s *HistorySource) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/capabilities", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var caps struct {
		Observations bool `json:"observations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return fmt.Errorf("decode capabilities: %w", err)
	}
	if !caps.Observations {
		return errors.New("provider does not expose observation history")
	}
	return nil
}

// Read fetches observations for the window and streams them to the caller.
// The provider returns them timestamp-ascending; ordering is preserved.
func (s *HistorySource) Read(ctx context.Context, tf domain.Timeframe) (<-chan domain.Observation, <-chan error) {
	out := make(chan domain.Observation)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		params := url.Values{
			"from": {tf.From.UTC().Format(time.RFC3339)},
			"to":   {tf.To.UTC().Format(time.RFC3339)},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/observations?"+params.Encode(), nil)
		if err != nil {
			errs <- fmt.Errorf("create request: %w", err)
			return
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("fetch observations: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("provider returned status %d", resp.StatusCode)
			return
		}

		// Decode the array element by element so a large window streams
		// through without being held in memory.
		dec := json.NewDecoder(resp.Body)
		if _, err := dec.Token(); err != nil {
			errs <- fmt.Errorf("decode observations: %w", err)
			return
		}
		for dec.More() {
			var o domain.Observation
			if err := dec.Decode(&o); err != nil {
				errs <- fmt.Errorf("decode observation: %w", err)
				return
			}
			select {
			case out <- o:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if _, err := dec.Token(); err != nil {
			errs <- fmt.Errorf("decode observations: %w", err)
		}
	}()

	return out, errs
}

// AvailableDates lists days the provider has data for inside the window.
func (s *HistorySource) AvailableDates(ctx context.Context, tf domain.Timeframe) ([]time.Time, error) {
	params := url.Values{
		"from": {tf.From.UTC().Format(time.RFC3339)},
		"to":   {tf.To.UTC().Format(time.RFC3339)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/dates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var raw []string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dates: %w", err)
	}

	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", s, err)
		}
		dates = append(dates, t)
	}
	return dates, nil
}
