package operations

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/services"
)

// TagHandler retags and reflavors the elements matching source-flavors and
// source-tags.
//
// target-tags entries prefixed with + are added and those prefixed with - are
// removed; if any entry has no prefix the element's tags are replaced by the
// unprefixed entries first. With copy=true the changes go onto new elements
// and the originals stay as they were.
type TagHandler struct{}

func (TagHandler) Start(_ context.Context, inv *handler.Invocation) (handler.Result, error) {
	sourceFlavors, err := mediapackage.ParseFlavors(inv.ConfigOr("source-flavors", ""))
	if err != nil {
		return handler.Result{}, services.Wrap(services.ErrConfiguration, "tag", "parse source-flavors", "", err)
	}
	var target mediapackage.Flavor
	if raw := inv.ConfigOr("target-flavor", ""); raw != "" {
		if target, err = mediapackage.ParseFlavor(raw); err != nil {
			return handler.Result{}, services.Wrap(services.ErrConfiguration, "tag", "parse target-flavor", "", err)
		}
	}
	ops := parseTagOps(inv.ConfigList("target-tags"))
	copyElements := inv.ConfigBool("copy", false)

	mp := inv.MediaPackage
	if mp == nil {
		return handler.Skip(), nil
	}
	selected := mp.Select(sourceFlavors, inv.ConfigList("source-tags"))
	if len(selected) == 0 {
		return handler.Skip(), nil
	}

	var copies []mediapackage.Element
	for _, el := range selected {
		if copyElements {
			dup := *el
			dup.Tags = append([]string(nil), el.Tags...)
			dup.ID = uuid.NewString()
			ops.apply(&dup)
			if !target.IsZero() {
				dup.Flavor = target.Apply(el.Flavor)
			}
			copies = append(copies, dup)
			continue
		}
		ops.apply(el)
		if !target.IsZero() {
			el.Flavor = target.Apply(el.Flavor)
		}
	}
	for _, dup := range copies {
		mp.Add(dup)
	}
	inv.Logger.Debug("elements tagged", logging.Int("count", len(selected)), logging.Bool("copy", copyElements))
	return handler.Continue(mp), nil
}

func (TagHandler) ConfigurationKeys() map[string]string {
	return map[string]string{
		"source-flavors": "comma-separated flavors to select, wildcards allowed",
		"source-tags":    "comma-separated tags to select",
		"target-flavor":  "flavor to assign, * keeps the source part",
		"target-tags":    "comma-separated tags; +tag adds, -tag removes, bare tags replace",
		"copy":           "true to tag copies of the selected elements",
	}
}

type tagOps struct {
	replace []string
	add     []string
	remove  []string
	reset   bool
}

func parseTagOps(entries []string) tagOps {
	var ops tagOps
	for _, entry := range entries {
		switch {
		case strings.HasPrefix(entry, "+"):
			ops.add = append(ops.add, strings.TrimPrefix(entry, "+"))
		case strings.HasPrefix(entry, "-"):
			ops.remove = append(ops.remove, strings.TrimPrefix(entry, "-"))
		default:
			ops.reset = true
			ops.replace = append(ops.replace, entry)
		}
	}
	return ops
}

func (o tagOps) apply(el *mediapackage.Element) {
	if o.reset {
		el.Tags = nil
		for _, tag := range o.replace {
			el.AddTag(tag)
		}
	}
	for _, tag := range o.add {
		el.AddTag(tag)
	}
	for _, tag := range o.remove {
		el.RemoveTag(tag)
	}
}
