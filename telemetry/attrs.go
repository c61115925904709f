package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// tagAttrs converts "key=value" tag strings into OTEL attributes, ignoring
// malformed entries rather than failing the metric emission.
func tagAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for _, tag := range tags {
		key, value := splitTag(tag)
		if key == "" {
			continue
		}
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}

func splitTag(tag string) (string, string) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '=' {
			return tag[:i], tag[i+1:]
		}
	}
	return "", ""
}

func toAttr(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
