package hn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hnproxy/internal/fetch"
)

// DefaultBaseURL is the public Hacker News Firebase API root.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// ErrNotFound is returned when upstream answers an item request with null.
var ErrNotFound = errors.New("hn: item not found")

// Client reads the two upstream endpoints the proxy depends on.
type Client struct {
	http    *fetch.Client
	baseURL string
}

// NewClient returns a client rooted at baseURL (DefaultBaseURL when empty).
func NewClient(hc *fetch.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewStoryIDs returns the current newest story ids in upstream order.
func (c *Client) NewStoryIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := c.http.GetJSON(ctx, c.baseURL+"/newstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetching new story ids: %w", err)
	}
	return ids, nil
}

// Item fetches one item. A null body yields ErrNotFound.
func (c *Client) Item(ctx context.Context, id int) (Item, error) {
	var it *Item
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &it); err != nil {
		return Item{}, fmt.Errorf("fetching item %d: %w", id, err)
	}
	if it == nil || it.ID == 0 {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return *it, nil
}
