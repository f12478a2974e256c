package workflow

import (
	"encoding/json"
	"time"
)

// Set is one page of a workflow instance listing.
type Set struct {
	Items      []*Instance
	StartPage  int
	Count      int
	TotalCount int
	SearchTime time.Duration
}

// Pages returns the number of pages of Count items needed for TotalCount.
func (s Set) Pages() int {
	if s.Count <= 0 || s.TotalCount == 0 {
		return 0
	}
	return (s.TotalCount + s.Count - 1) / s.Count
}

func (s Set) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []*Instance{}
	}
	return json.Marshal(struct {
		StartPage  int         `json:"startPage"`
		Count      int         `json:"count"`
		TotalCount int         `json:"totalCount"`
		SearchTime int64       `json:"searchTime"`
		Workflows  []*Instance `json:"workflows"`
	}{
		StartPage:  s.StartPage,
		Count:      s.Count,
		TotalCount: s.TotalCount,
		SearchTime: s.SearchTime.Milliseconds(),
		Workflows:  items,
	})
}
