package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
)

// Metadata is the server-level identification block of the resource file.
type Metadata struct {
	Title       registry.Text
	Description registry.Text
	URL         string
}

type resourceFile struct {
	Metadata struct {
		Identification struct {
			Title       any    `mapstructure:"title"`
			Description any    `mapstructure:"description"`
			URL         string `mapstructure:"url"`
		} `mapstructure:"identification"`
	} `mapstructure:"metadata"`
	Resources map[string]resourceEntry `mapstructure:"resources"`
}

type resourceEntry struct {
	Type        string           `mapstructure:"type"`
	Visibility  string           `mapstructure:"visibility"`
	Title       any              `mapstructure:"title"`
	Description any              `mapstructure:"description"`
	Keywords    []string         `mapstructure:"keywords"`
	Extents     *extentsEntry    `mapstructure:"extents"`
	Links       []linkEntry      `mapstructure:"links"`
	Providers   []map[string]any `mapstructure:"providers"`
}

type extentsEntry struct {
	Spatial *struct {
		BBox []float64 `mapstructure:"bbox"`
		CRS  string    `mapstructure:"crs"`
	} `mapstructure:"spatial"`
	Temporal *struct {
		Begin string `mapstructure:"begin"`
		End   string `mapstructure:"end"`
		TRS   string `mapstructure:"trs"`
	} `mapstructure:"temporal"`
}

type linkEntry struct {
	Type     string `mapstructure:"type"`
	Rel      string `mapstructure:"rel"`
	Title    any    `mapstructure:"title"`
	Href     string `mapstructure:"href"`
	Hreflang string `mapstructure:"hreflang"`
}

// LoadResources reads the catalogue file and builds the collection list in
// stable identifier order.
func LoadResources(path string) (Metadata, []registry.Collection, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Metadata{}, nil, fmt.Errorf("read resource file: %w", err)
	}

	var rf resourceFile
	if err := v.Unmarshal(&rf); err != nil {
		return Metadata{}, nil, fmt.Errorf("parse resource file: %w", err)
	}

	meta := Metadata{
		Title:       toText(rf.Metadata.Identification.Title),
		Description: toText(rf.Metadata.Identification.Description),
		URL:         rf.Metadata.Identification.URL,
	}

	ids := make([]string, 0, len(rf.Resources))
	for id := range rf.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var collections []registry.Collection
	for _, id := range ids {
		entry := rf.Resources[id]
		if entry.Type != "" && entry.Type != "collection" {
			continue
		}
		c, err := toCollection(id, entry)
		if err != nil {
			return Metadata{}, nil, err
		}
		collections = append(collections, c)
	}
	return meta, collections, nil
}

func toCollection(id string, entry resourceEntry) (registry.Collection, error) {
	c := registry.Collection{
		ID:          id,
		Title:       toText(entry.Title),
		Description: toText(entry.Description),
		Keywords:    entry.Keywords,
		Visibility:  registry.Visibility(entry.Visibility),
	}

	if entry.Extents != nil {
		ext := &registry.Extents{}
		if sp := entry.Extents.Spatial; sp != nil {
			ext.Spatial = &registry.SpatialExtent{BBox: sp.BBox, CRS: sp.CRS}
		}
		if tm := entry.Extents.Temporal; tm != nil {
			ext.Temporal = &registry.TemporalExtent{Begin: tm.Begin, End: tm.End, TRS: tm.TRS}
		}
		c.Extents = ext
	}

	for _, l := range entry.Links {
		c.Links = append(c.Links, registry.Link{
			Type:     l.Type,
			Rel:      l.Rel,
			Title:    toText(l.Title),
			Href:     l.Href,
			Hreflang: l.Hreflang,
		})
	}

	for i, raw := range entry.Providers {
		b, err := toBinding(raw)
		if err != nil {
			return registry.Collection{}, fmt.Errorf("collection %s provider %d: %w", id, i, err)
		}
		c.Providers = append(c.Providers, b)
	}
	if len(c.Providers) == 0 {
		return registry.Collection{}, fmt.Errorf("collection %s has no providers", id)
	}
	return c, nil
}

// toBinding flattens one provider entry: type, name and format are lifted
// out, every remaining scalar becomes a connection setting.
func toBinding(raw map[string]any) (provider.Binding, error) {
	b := provider.Binding{Connection: map[string]string{}}
	for k, v := range raw {
		switch k {
		case "type":
			b.Type = provider.Capability(fmt.Sprintf("%v", v))
		case "name":
			b.Name = fmt.Sprintf("%v", v)
		case "format":
			m, ok := v.(map[string]any)
			if !ok {
				return provider.Binding{}, fmt.Errorf("format must be a mapping")
			}
			b.Format = &provider.Format{
				Name:     fmt.Sprintf("%v", m["name"]),
				MimeType: fmt.Sprintf("%v", m["mimetype"]),
			}
		default:
			b.Connection[k] = fmt.Sprintf("%v", v)
		}
	}
	if b.Type == "" {
		return provider.Binding{}, fmt.Errorf("provider entry missing type")
	}
	if b.Name == "" {
		return provider.Binding{}, fmt.Errorf("provider entry missing name")
	}
	return b, nil
}

func toText(v any) registry.Text {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return registry.Text{"en": t}
	case map[string]any:
		out := registry.Text{}
		for k, val := range t {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case map[string]string:
		out := registry.Text{}
		for k, val := range t {
			out[k] = val
		}
		return out
	}
	return registry.Text{"en": fmt.Sprintf("%v", v)}
}
