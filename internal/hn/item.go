package hn

import "strconv"

// Item is a Hacker News item as served by the Firebase API.
// Optional upstream fields are pointers so "absent" survives a round trip.
type Item struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	URL         *string `json:"url,omitempty"`
	Score       int     `json:"score"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Descendants *int    `json:"descendants,omitempty"`
	Type        string  `json:"type"`
	Text        *string `json:"text,omitempty"`
	Kids        []int   `json:"kids,omitempty"`
	Deleted     *bool   `json:"deleted,omitempty"`
	Dead        *bool   `json:"dead,omitempty"`
}

// Live reports whether the item is neither deleted nor dead.
func (it Item) Live() bool {
	return !(it.Deleted != nil && *it.Deleted) && !(it.Dead != nil && *it.Dead)
}

// TextOrEmpty returns the item text, or "" when upstream sent none.
func (it Item) TextOrEmpty() string {
	if it.Text == nil {
		return ""
	}
	return *it.Text
}

// URLOrEmpty returns the story url, or "" for self posts.
func (it Item) URLOrEmpty() string {
	if it.URL == nil {
		return ""
	}
	return *it.URL
}

// DiscussionURL is the item's page on the Hacker News site.
func (it Item) DiscussionURL() string {
	return "https://news.ycombinator.com/item?id=" + strconv.Itoa(it.ID)
}
