package protocol

// SchemaName identifies the turn schema for backends and validation caches.
const SchemaName = "diagnostic-interview-turn"

// SchemaDescription is sent to backends alongside the schema.
const SchemaDescription = "One turn of the corporate diagnostic interview: the next question or the final report, plus the data collected so far"

var severityEnum = []any{string(SeverityLight), string(SeverityMedium), string(SeveritySevere)}

func score(desc string) map[string]any {
	return map[string]any{
		"type":        "integer",
		"minimum":     0,
		"maximum":     5,
		"description": desc,
	}
}

func nonBlank(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"pattern":     `\S`,
		"description": desc,
	}
}

func stringList(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

// SchemaDefinition is the JSON Schema of StructuredResult.
var SchemaDefinition = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"status": map[string]any{
			"type":        "string",
			"enum":        []any{string(StatusInProgress), string(StatusFinalized)},
			"description": "in_progress while questions remain, finalized once the report is written",
		},
		"nextQuestion": map[string]any{
			"type":        []any{"object", "null"},
			"description": "The next question to ask. Null when finalized",
			"properties": map[string]any{
				"text": nonBlank("Question shown to the participant"),
				"answerType": map[string]any{
					"type": "string",
					"enum": []any{
						string(AnswerFreeText), string(AnswerNumber), string(AnswerMultipleChoice),
						string(AnswerSingleSelect), string(AnswerYesNo),
					},
				},
				"options": map[string]any{
					"type":  []any{"array", "null"},
					"items": map[string]any{"type": "string"},
				},
				"placeholder": map[string]any{"type": "string"},
			},
			"required": []any{"text", "answerType", "options"},
		},
		"progress": map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"currentStep": map[string]any{"type": "integer", "minimum": 0},
				"totalSteps":  map[string]any{"type": "integer", "minimum": 0},
				"stepTitle":   map[string]any{"type": "string"},
			},
			"required": []any{"currentStep", "totalSteps", "stepTitle"},
		},
		"collectedData": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"problems": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":      map[string]any{"type": "string"},
							"impact":    score("Business impact, 0 to 5"),
							"frequency": score("How often it happens, 0 to 5"),
							"reach":     score("How much of the company it affects, 0 to 5"),
							"rootCause": map[string]any{"type": "string"},
							"evidence":  stringList("Facts reported by the participant"),
							"severity":  map[string]any{"type": "string", "enum": severityEnum},
						},
						"required": []any{"name", "impact", "frequency", "reach", "rootCause", "evidence", "severity"},
					},
				},
				"recommendedTracks": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"problem":        map[string]any{"type": "string"},
							"trackName":      nonBlank("Exact name of a track from the catalog"),
							"category":       map[string]any{"type": "string"},
							"level":          map[string]any{"type": "string"},
							"duration":       map[string]any{"type": "string"},
							"rationale":      map[string]any{"type": "string"},
							"expectedImpact": map[string]any{"type": "string"},
							"priority": map[string]any{
								"type": "string",
								"enum": []any{string(PriorityHigh), string(PriorityMedium), string(PriorityLow)},
							},
							"severity": map[string]any{"type": "string", "enum": severityEnum},
						},
						"required": []any{
							"problem", "trackName", "category", "level", "duration",
							"rationale", "expectedImpact", "priority", "severity",
						},
					},
				},
				"categoriesToAssociate": stringList("Track categories the company should be linked to"),
			},
			"required": []any{"problems", "recommendedTracks", "categoriesToAssociate"},
		},
		"finalReport": map[string]any{
			"type":        []any{"string", "null"},
			"description": "Markdown report. Set only when status is finalized",
		},
		"summary": map[string]any{
			"type":        []any{"string", "null"},
			"description": "Optional summary of collected answers shown before a confirmation question",
		},
	},
	"required": []any{"status", "nextQuestion", "progress", "collectedData", "finalReport"},
	// finalReport is set exactly when finalized, nextQuestion exactly when in_progress.
	"if": map[string]any{
		"properties": map[string]any{"status": map[string]any{"const": string(StatusFinalized)}},
	},
	"then": map[string]any{
		"properties": map[string]any{
			"finalReport":  map[string]any{"type": "string"},
			"nextQuestion": map[string]any{"type": "null"},
		},
	},
	"else": map[string]any{
		"properties": map[string]any{
			"finalReport":  map[string]any{"type": "null"},
			"nextQuestion": map[string]any{"type": "object"},
		},
	},
}
