package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SupportedOptions lists the option keys CollectionOptions understands.
var SupportedOptions = []string{
	"capped",
	"size",
	"max",
	"validator",
	"validationLevel",
	"validationAction",
	"expireAfterSeconds",
	"timeseries",
	"collation",
	"changeStreamPreAndPostImages",
}

// IsSupportedOption reports whether key is understood by CollectionOptions.
func IsSupportedOption(key string) bool {
	for _, k := range SupportedOptions {
		if k == key {
			return true
		}
	}
	return false
}

// CollectionOptions converts the definition's options into driver
// create-collection options. Unknown keys are ignored.
func (d *Definition) CollectionOptions() (*options.CreateCollectionOptionsBuilder, error) {
	opts := options.CreateCollection()
	if d == nil || len(d.Options) == 0 {
		return opts, nil
	}

	if v, ok := d.Options["capped"]; ok {
		capped, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("option capped: want bool, got %T", v)
		}
		opts.SetCapped(capped)
	}
	if v, ok := d.Options["size"]; ok {
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("option size: %w", err)
		}
		opts.SetSizeInBytes(n)
	}
	if v, ok := d.Options["max"]; ok {
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("option max: %w", err)
		}
		opts.SetMaxDocuments(n)
	}
	if v, ok := d.Options["validator"]; ok {
		opts.SetValidator(v)
	}
	if v, ok := d.Options["validationLevel"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("option validationLevel: want string, got %T", v)
		}
		opts.SetValidationLevel(s)
	}
	if v, ok := d.Options["validationAction"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("option validationAction: want string, got %T", v)
		}
		opts.SetValidationAction(s)
	}
	if v, ok := d.Options["expireAfterSeconds"]; ok {
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("option expireAfterSeconds: %w", err)
		}
		opts.SetExpireAfterSeconds(n)
	}
	if v, ok := d.Options["timeseries"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("option timeseries: want object, got %T", v)
		}
		ts := options.TimeSeries()
		if s, ok := m["timeField"].(string); ok {
			ts.SetTimeField(s)
		} else {
			return nil, fmt.Errorf("option timeseries: timeField is required")
		}
		if s, ok := m["metaField"].(string); ok {
			ts.SetMetaField(s)
		}
		if s, ok := m["granularity"].(string); ok {
			ts.SetGranularity(s)
		}
		opts.SetTimeSeriesOptions(ts)
	}
	if v, ok := d.Options["collation"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("option collation: want object, got %T", v)
		}
		c := &options.Collation{}
		if s, ok := m["locale"].(string); ok {
			c.Locale = s
		}
		if s, ok := m["strength"]; ok {
			n, err := toInt64(s)
			if err != nil {
				return nil, fmt.Errorf("option collation.strength: %w", err)
			}
			c.Strength = int(n)
		}
		opts.SetCollation(c)
	}
	if v, ok := d.Options["changeStreamPreAndPostImages"]; ok {
		enabled, err := preAndPostImages(v)
		if err != nil {
			return nil, fmt.Errorf("option changeStreamPreAndPostImages: %w", err)
		}
		opts.SetChangeStreamPreAndPostImages(bson.M{"enabled": enabled})
	}

	return opts, nil
}

// preAndPostImages accepts a bare bool or {enabled: <bool>}.
func preAndPostImages(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case map[string]any:
		enabled, ok := x["enabled"].(bool)
		if !ok {
			return false, fmt.Errorf("enabled: want bool, got %T", x["enabled"])
		}
		return enabled, nil
	default:
		return false, fmt.Errorf("want bool or object, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("want integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("want number, got %T", v)
	}
}
