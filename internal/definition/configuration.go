package definition

import (
	"encoding/json"
	"maps"
	"slices"
)

// Entry is one configuration key/value pair.
type Entry struct {
	Key   string `json:"key" toml:"key"`
	Value string `json:"value" toml:"value"`
}

// Configuration is an ordered string-keyed, string-valued set. Keys are
// unique; setting an existing key keeps its original position.
type Configuration struct {
	entries []Entry
}

// NewConfiguration builds a configuration from entries, later duplicates
// overwriting earlier ones.
func NewConfiguration(entries ...Entry) Configuration {
	var c Configuration
	for _, e := range entries {
		c.Set(e.Key, e.Value)
	}
	return c
}

func (c *Configuration) Set(key, value string) {
	for i := range c.entries {
		if c.entries[i].Key == key {
			c.entries[i].Value = value
			return
		}
	}
	c.entries = append(c.entries, Entry{Key: key, Value: value})
}

func (c Configuration) Get(key string) (string, bool) {
	for _, e := range c.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (c *Configuration) Delete(key string) {
	c.entries = slices.DeleteFunc(c.entries, func(e Entry) bool { return e.Key == key })
	if len(c.entries) == 0 {
		c.entries = nil
	}
}

// Merge sets every pair of values, new keys appended in sorted order.
func (c *Configuration) Merge(values map[string]string) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		c.Set(key, values[key])
	}
}

func (c Configuration) Len() int { return len(c.entries) }

func (c Configuration) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the pairs in order.
func (c Configuration) Entries() []Entry {
	return slices.Clone(c.entries)
}

func (c Configuration) Map() map[string]string {
	out := make(map[string]string, len(c.entries))
	for _, e := range c.entries {
		out[e.Key] = e.Value
	}
	return out
}

func (c Configuration) Clone() Configuration {
	return Configuration{entries: slices.Clone(c.entries)}
}

func (c Configuration) Equal(other Configuration) bool {
	return slices.Equal(c.entries, other.entries)
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	if c.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.entries)
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*c = NewConfiguration(entries...)
	return nil
}
