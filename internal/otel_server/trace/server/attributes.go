package server

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	commonV1 "go.opentelemetry.io/proto/otlp/common/v1"
)

func getAttributeMap(attributes []*commonV1.KeyValue) model.Attributes {
	if len(attributes) == 0 {
		return model.Attributes{}
	}
	flat := make(map[string]interface{}, len(attributes))
	for _, attribute := range attributes {
		flat[attribute.Key] = anyValueToInterface(attribute.Value)
	}
	return unflatten(flat)
}

func anyValueToInterface(value *commonV1.AnyValue) interface{} {
	switch v := value.GetValue().(type) {
	case *commonV1.AnyValue_StringValue:
		return v.StringValue
	case *commonV1.AnyValue_BoolValue:
		return v.BoolValue
	case *commonV1.AnyValue_IntValue:
		return v.IntValue
	case *commonV1.AnyValue_DoubleValue:
		return v.DoubleValue
	case *commonV1.AnyValue_BytesValue:
		return v.BytesValue
	case *commonV1.AnyValue_ArrayValue:
		values := make([]interface{}, len(v.ArrayValue.GetValues()))
		for i, element := range v.ArrayValue.GetValues() {
			values[i] = anyValueToInterface(element)
		}
		return values
	case *commonV1.AnyValue_KvlistValue:
		kv := make(map[string]interface{}, len(v.KvlistValue.GetValues()))
		for _, element := range v.KvlistValue.GetValues() {
			kv[element.Key] = anyValueToInterface(element.Value)
		}
		return kv
	default:
		return nil
	}
}

// unflatten nests dotted keys into maps and turns maps keyed 0..n-1 into lists, so that
// "retrieval.documents.1.document.id" becomes the second element of the
// retrieval.documents list. A key that collides with an existing value is kept flat.
func unflatten(flat map[string]interface{}) model.Attributes {
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	root := make(map[string]interface{}, len(flat))
	for _, key := range keys {
		if !insertPath(root, strings.Split(key, "."), flat[key]) {
			root[key] = flat[key]
		}
	}
	for key, value := range root {
		root[key] = listify(value)
	}
	return root
}

func insertPath(node map[string]interface{}, path []string, value interface{}) bool {
	for _, segment := range path[:len(path)-1] {
		child, ok := node[segment]
		if !ok {
			nested := make(map[string]interface{})
			node[segment] = nested
			node = nested
			continue
		}
		nested, ok := child.(map[string]interface{})
		if !ok {
			return false
		}
		node = nested
	}
	last := path[len(path)-1]
	if _, exists := node[last]; exists {
		return false
	}
	node[last] = value
	return true
}

func listify(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, nested := range typed {
			typed[key] = listify(nested)
		}
		if list, ok := asDenseList(typed); ok {
			return list
		}
		return typed
	case []interface{}:
		for i, nested := range typed {
			typed[i] = listify(nested)
		}
		return typed
	default:
		return value
	}
}

func asDenseList(m map[string]interface{}) ([]interface{}, bool) {
	if len(m) == 0 {
		return nil, false
	}
	list := make([]interface{}, len(m))
	for key, value := range m {
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 || index >= len(m) || strconv.Itoa(index) != key {
			return nil, false
		}
		list[index] = value
	}
	return list, true
}
