package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type ExistingCollection struct {
	Name     string
	Type     string // collection, view or timeseries
	Capped   bool
	ReadOnly bool
	Options  bson.M
}

// IsView reports whether the collection is a view.
func (c ExistingCollection) IsView() bool {
	return c.Type == "view"
}

// ListCollections returns the live collections of db sorted by name.
// System collections are left out.
func ListCollections(ctx context.Context, db *mongo.Database) ([]ExistingCollection, error) {
	specs, err := db.ListCollectionSpecifications(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %v", err)
	}

	var out []ExistingCollection
	for _, spec := range specs {
		if strings.HasPrefix(spec.Name, "system.") {
			continue
		}
		c, err := fromSpecification(spec.Name, spec.Type, spec.ReadOnly, spec.Options)
		if err != nil {
			return nil, fmt.Errorf("reading options of %s: %v", spec.Name, err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func fromSpecification(name, typ string, readOnly bool, raw bson.Raw) (ExistingCollection, error) {
	c := ExistingCollection{Name: name, Type: typ, ReadOnly: readOnly, Options: bson.M{}}
	if len(raw) > 0 {
		if err := bson.Unmarshal(raw, &c.Options); err != nil {
			return c, err
		}
	}
	if capped, ok := c.Options["capped"].(bool); ok {
		c.Capped = capped
	}
	return c, nil
}

// CollectionNames returns a set of the live collection names.
func CollectionNames(cols []ExistingCollection) map[string]bool {
	names := make(map[string]bool, len(cols))
	for _, c := range cols {
		names[c.Name] = true
	}
	return names
}
