// Package wayback resolves a URL to its closest Wayback Machine snapshot and
// reads that snapshot through the reader stage.
package wayback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// DefaultAvailabilityURL is the public availability API.
const DefaultAvailabilityURL = "https://archive.org/wayback/available"

// ErrNoSnapshot is returned when the archive holds no usable snapshot.
var ErrNoSnapshot = errors.New("no wayback snapshot available")

// PageReader reads a page as markdown.
type PageReader interface {
	Fetch(ctx context.Context, rawURL string) (research.Page, error)
}

// Snapshot is the closest archived capture of a URL.
type Snapshot struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Timestamp string `json:"timestamp"`
}

type availability struct {
	ArchivedSnapshots struct {
		Closest *Snapshot `json:"closest"`
	} `json:"archived_snapshots"`
}

// Client is the archive fallback stage.
type Client struct {
	getter          research.Getter
	availabilityURL string
	reader          PageReader
}

// New builds a Client. An empty availabilityURL selects DefaultAvailabilityURL.
func New(getter research.Getter, availabilityURL string, reader PageReader) (*Client, error) {
	if getter == nil {
		return nil, errors.New("wayback getter is required")
	}
	if reader == nil {
		return nil, errors.New("wayback page reader is required")
	}
	availabilityURL = strings.TrimSpace(availabilityURL)
	if availabilityURL == "" {
		availabilityURL = DefaultAvailabilityURL
	}
	return &Client{getter: getter, availabilityURL: availabilityURL, reader: reader}, nil
}

// Method implements research.Stage.
func (c *Client) Method() string {
	return research.MethodArchive
}

// Closest asks the availability API for the snapshot nearest to now.
func (c *Client) Closest(ctx context.Context, rawURL string) (Snapshot, error) {
	endpoint, err := url.Parse(c.availabilityURL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse availability url: %w", err)
	}
	query := endpoint.Query()
	query.Set("url", rawURL)
	endpoint.RawQuery = query.Encode()

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	resp, err := c.getter.Get(ctx, endpoint.String(), headers)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query wayback availability: %w", err)
	}

	var payload availability
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("decode wayback availability: %w", err)
	}
	closest := payload.ArchivedSnapshots.Closest
	if closest == nil || closest.Status != "200" || closest.URL == "" {
		return Snapshot{}, fmt.Errorf("%w for %s", ErrNoSnapshot, rawURL)
	}
	return *closest, nil
}

// Fetch reads the closest snapshot of rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (research.Page, error) {
	snap, err := c.Closest(ctx, rawURL)
	if err != nil {
		return research.Page{}, err
	}
	page, err := c.reader.Fetch(ctx, snap.URL)
	if err != nil {
		return research.Page{}, fmt.Errorf("read snapshot %s: %w", snap.URL, err)
	}
	page.Method = research.MethodArchive
	return page, nil
}
