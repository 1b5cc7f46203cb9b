// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/geosort/geosort/spatial"
	"github.com/geosort/geosort/utils/httputils"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"

// NominatimOptions configuration for the Nominatim client.
type NominatimOptions struct {
	// BaseURL overrides the reverse endpoint, mainly for tests.
	BaseURL string

	// UserAgent is the User-Agent header to use in HTTP requests. Nominatim
	// rejects clients without one.
	UserAgent string

	// Timeout for a single reverse request.
	Timeout time.Duration

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// NominatimGeocoder reverse-geocodes through the OpenStreetMap Nominatim API.
type NominatimGeocoder struct {
	baseURL string
	client  *http.Client
}

// NewNominatimGeocoder creates a new Nominatim client with the provided
// options.
func NewNominatimGeocoder(options *NominatimOptions) *NominatimGeocoder {
	if options == nil {
		options = &NominatimOptions{}
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = "geosort/unknown"
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       2,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	return &NominatimGeocoder{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: headerTransport,
		},
	}
}

type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		Province    string `json:"province"`
		Region      string `json:"region"`
		County      string `json:"county"`

		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		Suburb       string `json:"suburb"`
		District     string `json:"district"`
	} `json:"address"`
}

// ReverseGeocode implements the ReverseGeocoder interface.
func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, coord spatial.Coordinate) (*RawAddress, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", coord.Lat))
	params.Set("lon", fmt.Sprintf("%f", coord.Lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building reverse request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, &GeocodeError{
			Type:    ErrorTypeMalformed,
			Message: "decoding reverse response",
			Err:     err,
		}
	}

	// Nominatim reports "Unable to geocode" as a 200 with an error field.
	if nr.Error != "" {
		return nil, nil
	}

	addr := RawAddress{
		Country:      nr.Address.Country,
		CountryCode:  nr.Address.CountryCode,
		State:        nr.Address.State,
		Province:     nr.Address.Province,
		Region:       nr.Address.Region,
		County:       nr.Address.County,
		City:         nr.Address.City,
		Town:         nr.Address.Town,
		Village:      nr.Address.Village,
		Municipality: nr.Address.Municipality,
		Suburb:       nr.Address.Suburb,
		District:     nr.Address.District,
	}

	if addr == (RawAddress{}) {
		return nil, nil
	}

	return &addr, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GeocodeError{Type: ErrorTypeTimeout, Message: "reverse request timed out", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GeocodeError{Type: ErrorTypeTimeout, Message: "reverse request timed out", Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return &GeocodeError{Type: ErrorTypeUnavailable, Message: "reverse request failed", Err: err}
}
