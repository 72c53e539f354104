package handlers

import (
	"encoding/json"
	"net/http"
)

func errorResponseRef(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/ErrorResponse"},
			},
		},
	}
}

func number() map[string]string {
	return map[string]string{"type": "number", "format": "double"}
}

// OpenAPISpec returns the OpenAPI 3.0 document for the Store Monitor API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Store Monitor API",
			"description": "Asynchronous store uptime and downtime reports over business hours",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/trigger_report": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Trigger a report",
					"description": "Starts a background report over the current data snapshot and returns its id immediately",
					"tags":        []string{"Reports"},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Report accepted",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]string{"$ref": "#/components/schemas/TriggerResponse"},
								},
							},
						},
						"500": errorResponseRef("Report could not be registered"),
					},
				},
			},
			"/get_report/{report_id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Poll a report",
					"description": "Returns the job status while Running or Failed, and the report file once Complete",
					"tags":        []string{"Reports"},
					"parameters": []map[string]interface{}{
						{
							"name":     "report_id",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
						{
							"name":        "format",
							"in":          "query",
							"description": "Output format of a completed report (default: csv)",
							"required":    false,
							"schema": map[string]interface{}{
								"type":    "string",
								"enum":    []string{"csv", "xlsx", "json"},
								"default": "csv",
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Job status or report content",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"oneOf": []map[string]string{
											{"$ref": "#/components/schemas/StatusResponse"},
											{"$ref": "#/components/schemas/ReportResponse"},
										},
									},
								},
								"text/csv": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
								"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": map[string]interface{}{
									"schema": map[string]string{"type": "string", "format": "binary"},
								},
							},
						},
						"400": errorResponseRef("Unknown format"),
						"404": errorResponseRef("Unknown report id"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Liveness check",
					"tags":    []string{"Health"},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is running"},
					},
				},
			},
			"/health/ready": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Readiness check",
					"tags":    []string{"Health"},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Store reachable"},
						"503": errorResponseRef("Store unavailable"),
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"TriggerResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"report_id": map[string]string{"type": "string"},
					},
				},
				"StatusResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"report_id":    map[string]string{"type": "string"},
						"status":       map[string]interface{}{"type": "string", "enum": []string{"Running", "Complete", "Failed"}},
						"created_at":   map[string]string{"type": "string", "format": "date-time"},
						"completed_at": map[string]string{"type": "string", "format": "date-time"},
						"error":        map[string]string{"type": "string"},
					},
				},
				"ReportRow": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"store_id":           map[string]string{"type": "string"},
						"uptime_last_hour":   number(),
						"uptime_last_day":    number(),
						"uptime_last_week":   number(),
						"downtime_last_hour": number(),
						"downtime_last_day":  number(),
						"downtime_last_week": number(),
					},
				},
				"ReportResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"report_id":      map[string]string{"type": "string"},
						"status":         map[string]string{"type": "string"},
						"reference_time": map[string]string{"type": "string", "format": "date-time"},
						"rows": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"$ref": "#/components/schemas/ReportRow"},
						},
						"summary": map[string]string{"type": "object"},
					},
				},
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
