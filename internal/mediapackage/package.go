package mediapackage

import (
	"slices"
	"time"
)

// Kind distinguishes the three element collections of a package.
type Kind string

const (
	KindTrack      Kind = "track"
	KindCatalog    Kind = "catalog"
	KindAttachment Kind = "attachment"
)

// Element is one file of a media package.
type Element struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Flavor   Flavor        `json:"flavor"`
	Tags     []string      `json:"tags,omitempty"`
	URI      string        `json:"uri,omitempty"`
	MimeType string        `json:"mimetype,omitempty"`
	Size     int64         `json:"size,omitempty"`
	Checksum string        `json:"checksum,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// HasTag reports whether the element carries tag.
func (e *Element) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// AddTag adds tag unless already present.
func (e *Element) AddTag(tag string) {
	if tag == "" || e.HasTag(tag) {
		return
	}
	e.Tags = append(e.Tags, tag)
}

// RemoveTag drops tag if present.
func (e *Element) RemoveTag(tag string) {
	e.Tags = slices.DeleteFunc(e.Tags, func(t string) bool { return t == tag })
}

func (e Element) clone() Element {
	e.Tags = slices.Clone(e.Tags)
	return e
}

// MediaPackage is the artifact processed by one workflow instance.
type MediaPackage struct {
	ID          string        `json:"id"`
	Title       string        `json:"title,omitempty"`
	Series      string        `json:"series,omitempty"`
	Language    string        `json:"language,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Start       *time.Time    `json:"start,omitempty"`
	Tracks      []Element     `json:"tracks,omitempty"`
	Catalogs    []Element     `json:"catalogs,omitempty"`
	Attachments []Element     `json:"attachments,omitempty"`
}

// Clone returns a deep copy.
func (m *MediaPackage) Clone() *MediaPackage {
	if m == nil {
		return nil
	}
	out := *m
	if m.Start != nil {
		start := *m.Start
		out.Start = &start
	}
	out.Tracks = cloneElements(m.Tracks)
	out.Catalogs = cloneElements(m.Catalogs)
	out.Attachments = cloneElements(m.Attachments)
	return &out
}

// Elements returns pointers to every element in track, catalog, attachment order.
// The pointers alias the package so callers may edit tags and flavors in place.
func (m *MediaPackage) Elements() []*Element {
	out := make([]*Element, 0, len(m.Tracks)+len(m.Catalogs)+len(m.Attachments))
	for i := range m.Tracks {
		out = append(out, &m.Tracks[i])
	}
	for i := range m.Catalogs {
		out = append(out, &m.Catalogs[i])
	}
	for i := range m.Attachments {
		out = append(out, &m.Attachments[i])
	}
	return out
}

// Element returns the element with id.
func (m *MediaPackage) Element(id string) (*Element, bool) {
	for _, el := range m.Elements() {
		if el.ID == id {
			return el, true
		}
	}
	return nil, false
}

// Select returns the elements matching any of flavors and carrying any of
// tags. An empty criterion matches everything.
func (m *MediaPackage) Select(flavors []Flavor, tags []string) []*Element {
	var out []*Element
	for _, el := range m.Elements() {
		if len(flavors) > 0 && !slices.ContainsFunc(flavors, el.Flavor.Matches) {
			continue
		}
		if len(tags) > 0 && !slices.ContainsFunc(tags, el.HasTag) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// Add appends el to the collection its kind names. Elements without a kind
// are treated as attachments.
func (m *MediaPackage) Add(el Element) {
	switch el.Kind {
	case KindTrack:
		m.Tracks = append(m.Tracks, el)
	case KindCatalog:
		m.Catalogs = append(m.Catalogs, el)
	default:
		el.Kind = KindAttachment
		m.Attachments = append(m.Attachments, el)
	}
}

// Remove deletes the element with id and reports whether it existed.
func (m *MediaPackage) Remove(id string) bool {
	match := func(el Element) bool { return el.ID == id }
	before := len(m.Tracks) + len(m.Catalogs) + len(m.Attachments)
	m.Tracks = slices.DeleteFunc(m.Tracks, match)
	m.Catalogs = slices.DeleteFunc(m.Catalogs, match)
	m.Attachments = slices.DeleteFunc(m.Attachments, match)
	return before != len(m.Tracks)+len(m.Catalogs)+len(m.Attachments)
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, el := range in {
		out[i] = el.clone()
	}
	return out
}
