package gateway

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nucleus/ucl-salesforce/internal/entity"
)

// toStruct converts any JSON-encodable value with object shape.
func toStruct(v any) (*structpb.Struct, error) {
	m, err := toMap(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toValue(v any) (*structpb.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// entitiesFromValue decodes one entity set from its JSON object form.
func entitiesFromValue(v *structpb.Value) (*entity.Entities, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var e entity.Entities
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return &e, nil
}

// redact returns a copy of config with the values of keys masked.
func redact(config map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}
	for _, k := range keys {
		if _, ok := out[k]; ok {
			out[k] = "***"
		}
	}
	return out
}
