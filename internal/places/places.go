// Package places wraps the Google Places HTTP API for address autocomplete
// and place details. Concurrent identical lookups are collapsed into a single
// upstream call, and transient upstream failures are retried with bounded
// exponential backoff.
package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/logger"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
)

// Prediction is a single autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Details holds the resolved address for a place.
type Details struct {
	FormattedAddress string  `json:"formatted_address"`
	Street           string  `json:"street"`
	City             string  `json:"city"`
	PostalCode       string  `json:"postal_code"`
	Country          string  `json:"country"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// Client calls the Google Places API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// NewClient creates a Places client. An empty API key is allowed; calls will
// fail with ErrPlacesUnavailable, which lets the rest of the API run without
// Google credentials in development.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint. Used in tests.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// Autocomplete returns address predictions for the given partial input.
// Identical in-flight inputs share one upstream request.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return []Prediction{}, nil
	}

	key := strings.ToLower(input)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.autocomplete(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Prediction), nil
}

func (c *Client) autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("types", "address")
	q.Set("key", c.apiKey)

	body, err := c.get(ctx, fmt.Sprintf("%s/autocomplete/json?%s", c.baseURL, q.Encode()))
	if err != nil {
		return nil, err
	}

	if err := statusError(gjson.GetBytes(body, "status").String()); err != nil {
		return nil, err
	}

	var predictions []Prediction
	gjson.GetBytes(body, "predictions").ForEach(func(_, p gjson.Result) bool {
		predictions = append(predictions, Prediction{
			Description: p.Get("description").String(),
			PlaceID:     p.Get("place_id").String(),
		})
		return true
	})
	if predictions == nil {
		predictions = []Prediction{}
	}
	return predictions, nil
}

// GetDetails resolves a place ID into a structured address.
func (c *Client) GetDetails(ctx context.Context, placeID string) (*Details, error) {
	if placeID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "place_id is required")
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address,address_component,geometry")
	q.Set("key", c.apiKey)

	body, err := c.get(ctx, fmt.Sprintf("%s/details/json?%s", c.baseURL, q.Encode()))
	if err != nil {
		return nil, err
	}

	if err := statusError(gjson.GetBytes(body, "status").String()); err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, "result")
	details := &Details{
		FormattedAddress: result.Get("formatted_address").String(),
		Latitude:         result.Get("geometry.location.lat").Float(),
		Longitude:        result.Get("geometry.location.lng").Float(),
	}

	var streetNumber, route string
	result.Get("address_components").ForEach(func(_, comp gjson.Result) bool {
		value := comp.Get("long_name").String()
		comp.Get("types").ForEach(func(_, t gjson.Result) bool {
			switch t.String() {
			case "street_number":
				streetNumber = value
			case "route":
				route = value
			case "locality":
				details.City = value
			case "postal_code":
				details.PostalCode = value
			case "country":
				details.Country = value
			}
			return true
		})
		return true
	})
	details.Street = strings.TrimSpace(route + " " + streetNumber)

	return details, nil
}

// get performs an HTTP GET with up to maxAttempts tries and exponential backoff.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, apperrors.ErrPlacesUnavailable
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.ErrPlacesUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Get().Warnw("places request failed", "attempt", attempt, "error", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("places upstream returned %d", resp.StatusCode)
			logger.Get().Warnw("places upstream error", "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.Wrap(apperrors.ErrPlacesUnavailable,
				fmt.Errorf("places upstream returned %d", resp.StatusCode))
		}

		return body, nil
	}

	return nil, apperrors.Wrap(apperrors.ErrPlacesUnavailable, lastErr)
}

// statusError maps a Places API status string to an application error.
// ZERO_RESULTS is not an error; it just yields an empty result set.
func statusError(status string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT":
		return apperrors.ErrPlacesQuota
	case "REQUEST_DENIED", "INVALID_REQUEST":
		return apperrors.WithMessage(apperrors.ErrPlacesUnavailable, "Address lookup rejected the request")
	default:
		return apperrors.ErrPlacesUnavailable
	}
}
