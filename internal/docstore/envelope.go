package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one search hit: the dashboard id and its stored body.
type Document struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// SearchResult is the part of the Elasticsearch search envelope a snapshot
// depends on. Snapshots store the whole envelope verbatim.
type SearchResult struct {
	Hits struct {
		Total Total      `json:"total"`
		Hits  []Document `json:"hits"`
	} `json:"hits"`
}

// Total accepts both the pre-7.x numeric form and the {"value":N} object.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain Total
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*t = Total(p)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &t.Value); err != nil {
		return fmt.Errorf("decode hits.total: %w", err)
	}
	t.Relation = "eq"
	return nil
}

// ParseSearchResult decodes a search envelope, as returned by Search or as
// read back from a snapshot.
func ParseSearchResult(data []byte) (*SearchResult, error) {
	var res SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	for i, doc := range res.Hits.Hits {
		if doc.ID == "" {
			return nil, fmt.Errorf("decode search result: hit %d has no _id", i)
		}
	}
	return &res, nil
}

// Documents returns the hits in envelope order.
func (r *SearchResult) Documents() []Document {
	return r.Hits.Hits
}

// IDs returns the document ids in envelope order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, 0, len(r.Hits.Hits))
	for _, doc := range r.Hits.Hits {
		ids = append(ids, doc.ID)
	}
	return ids
}

// Truncated reports whether the collection held more documents than the
// envelope carries.
func (r *SearchResult) Truncated() bool {
	return r.Hits.Total.Value > int64(len(r.Hits.Hits))
}
