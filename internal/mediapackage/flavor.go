package mediapackage

import (
	"strings"

	"mediaflow/internal/services"
)

// Wildcard matches any type or subtype.
const Wildcard = "*"

// Flavor classifies an element, for example presenter/source.
type Flavor struct {
	Type    string
	Subtype string
}

// ParseFlavor parses "type/subtype". Either side may be the wildcard.
func ParseFlavor(value string) (Flavor, error) {
	trimmed := strings.TrimSpace(value)
	typ, subtype, ok := strings.Cut(trimmed, "/")
	typ = strings.TrimSpace(typ)
	subtype = strings.TrimSpace(subtype)
	if !ok || typ == "" || subtype == "" || strings.Contains(subtype, "/") {
		return Flavor{}, services.Wrap(services.ErrConfiguration, "mediapackage", "parse flavor", "expected type/subtype, got "+quote(value), nil)
	}
	return Flavor{Type: typ, Subtype: subtype}, nil
}

// MustParseFlavor is ParseFlavor for literals known to be valid.
func MustParseFlavor(value string) Flavor {
	flavor, err := ParseFlavor(value)
	if err != nil {
		panic(err)
	}
	return flavor
}

// ParseFlavors parses a comma-separated flavor list.
func ParseFlavors(value string) ([]Flavor, error) {
	items := SplitList(value)
	flavors := make([]Flavor, 0, len(items))
	for _, item := range items {
		flavor, err := ParseFlavor(item)
		if err != nil {
			return nil, err
		}
		flavors = append(flavors, flavor)
	}
	return flavors, nil
}

func (f Flavor) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Type + "/" + f.Subtype
}

func (f Flavor) IsZero() bool {
	return f.Type == "" && f.Subtype == ""
}

// Matches reports whether f matches other, honouring wildcards on either side.
func (f Flavor) Matches(other Flavor) bool {
	return part(f.Type, other.Type) && part(f.Subtype, other.Subtype)
}

// Apply returns f with wildcard parts replaced by the corresponding parts of
// base, so target flavor */delivery applied to presenter/source yields
// presenter/delivery.
func (f Flavor) Apply(base Flavor) Flavor {
	out := f
	if out.Type == Wildcard {
		out.Type = base.Type
	}
	if out.Subtype == Wildcard {
		out.Subtype = base.Subtype
	}
	return out
}

func (f Flavor) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Flavor) UnmarshalText(data []byte) error {
	if strings.TrimSpace(string(data)) == "" {
		*f = Flavor{}
		return nil
	}
	parsed, err := ParseFlavor(string(data))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func part(a, b string) bool {
	return a == Wildcard || b == Wildcard || strings.EqualFold(a, b)
}

func quote(value string) string {
	return "\"" + value + "\""
}
