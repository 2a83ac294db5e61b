package bootstrapper

const SpanIndexName = "span_index"

var spanIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"project_id": map[string]string{
				"type": "keyword",
			},
			"project_name": map[string]string{
				"type": "keyword",
			},
			"span_id": map[string]string{
				"type": "keyword",
			},
			"parent_span_id": map[string]string{
				"type": "keyword",
			},
			"trace_id": map[string]string{
				"type": "keyword",
			},
			"name": map[string]string{
				"type": "keyword",
			},
			"span_kind": map[string]string{
				"type": "keyword",
			},
			"start_time": map[string]string{
				"type": "date",
			},
			"end_time": map[string]string{
				"type": "date",
			},
			"status": map[string]interface{}{
				"properties": map[string]interface{}{
					"code": map[string]string{
						"type": "keyword",
					},
					"message": map[string]string{
						"type": "text",
					},
				},
			},
			// attribute values are heterogeneous, so they are stored but not indexed
			"attributes": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
			"events": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
		},
	},
}
