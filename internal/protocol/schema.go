package protocol

import (
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
)

type schemaEntry struct {
	value       any
	title       string
	description string
}

var schemas = map[string]schemaEntry{
	"submission": {
		value:       new(Submission),
		title:       "Round Submission",
		description: "Plaintext of an encrypted frame sent by the evaluation client once per player and round",
	},
	"state": {
		value:       new(combat.Snapshot),
		title:       "Authoritative State",
		description: "Plaintext frame sent back to the client after every scored submission",
	},
}

// RegisterSchema exposes an additional wire type under name. It is meant to
// be called during package initialisation.
func RegisterSchema(name string, value any, title, description string) {
	schemas[name] = schemaEntry{value: value, title: title, description: description}
}

// SchemaNames lists the registered schema names in sorted order.
func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema reflects the JSON schema registered under name.
func Schema(name string) (*jsonschema.Schema, bool) {
	entry, ok := schemas[name]
	if !ok {
		return nil, false
	}
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(entry.value)
	schema.Title = entry.title
	schema.Description = entry.description
	return schema, true
}
