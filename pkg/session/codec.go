package session

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Well-known local store keys. The collection key holds a JSON array of
// sessions; the pointer key holds the current session id as bare text.
const (
	SessionsKey       = "whatif-sessions-v3"
	CurrentSessionKey = "whatif-current-session-v3"
)

// collectionSchema guards against loading garbage from the local store.
// Anything that fails validation is treated as "no data" by bootstrap.
const collectionSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "title", "createdAt", "updatedAt", "turns"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"storyId": {"type": "string"},
			"title": {"type": "string"},
			"createdAt": {"type": "string"},
			"updatedAt": {"type": "string"},
			"isActive": {"type": "boolean"},
			"turns": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "role", "content", "timestamp"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"role": {"type": "string", "enum": ["user", "assistant", "system"]},
						"content": {"type": "string"},
						"timestamp": {"type": "string"}
					}
				}
			}
		}
	}
}`

var collectionSchemaLoader = gojsonschema.NewStringLoader(collectionSchema)

// EncodeSessions serializes the collection for the local store.
func EncodeSessions(sessions []Session) (string, error) {
	if sessions == nil {
		sessions = []Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return "", fmt.Errorf("failed to encode sessions: %w", err)
	}
	return string(data), nil
}

// DecodeSessions parses and validates a stored collection. A payload that
// is not valid JSON or does not match the schema is an error; callers on
// the bootstrap path degrade to an empty collection.
func DecodeSessions(payload string) ([]Session, error) {
	result, err := gojsonschema.Validate(collectionSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to validate stored sessions: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("stored sessions do not match schema: %v", result.Errors())
	}

	var sessions []Session
	if err := json.Unmarshal([]byte(payload), &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}
