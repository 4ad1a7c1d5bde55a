package annotation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key is the equivalence class of annotations that can share one layer:
// same kind and identical layer-level configuration.
type Key struct {
	Kind   Kind
	Layout string
}

func newKey(k Kind, layout map[string]any) Key {
	names := make([]string, 0, len(layout))
	for name := range layout {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		v, _ := json.Marshal(featureValue(layout[name]))
		b.WriteString(name)
		b.WriteByte('=')
		b.Write(v)
	}
	return Key{Kind: k, Layout: b.String()}
}

func (k Key) String() string {
	return k.Kind.String() + "{" + k.Layout + "}"
}

// KeyFor builds the key of kind k with the given layer-level properties;
// unset ones take their defaults.
func KeyFor(k Kind, layout map[string]any) (Key, error) {
	resolved, err := resolveLayout(k, layout)
	if err != nil {
		return Key{}, err
	}
	return newKey(k, resolved), nil
}

// resolveLayout validates layer-level properties and fills in defaults.
func resolveLayout(k Kind, layout map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	for name, spec := range propertyIndex[k] {
		if !spec.dataDriven && spec.def != nil {
			out[name] = spec.def
		}
	}
	for name, v := range layout {
		spec, err := lookupProperty(k, name)
		if err != nil {
			return nil, err
		}
		if spec.dataDriven {
			return nil, fmt.Errorf("%s is data-driven, not layer-level: %w", name, ErrInvalidProperty)
		}
		nv, err := spec.normalize(v)
		if err != nil {
			return nil, err
		}
		out[name] = nv
	}
	return out, nil
}
