package prompts

import (
	_ "embed"
	"strings"
	"text/template"
)

// Embedded prompt files

//go:embed extraction_system.txt
var extractionSystem string

//go:embed chunk_user.txt.tmpl
var chunkUser string

//go:embed state_schema.json
var stateSchema string

var chunkTemplate = template.Must(template.New("chunk_user").Parse(chunkUser))

func ExtractionSystem() string { return extractionSystem }
func StateSchema() string      { return stateSchema }

// ChunkPrompt carries the per-chunk payload handed to the oracle: document
// metadata, the serialized accumulated state, the schema the object must
// conform to, and the chunk text itself.
type ChunkPrompt struct {
	DocID         string
	ChunkID       int
	TotalChunks   int
	ChunkSpan     string
	PreviousState string
	Schema        string
	ChunkText     string
}

// BuildChunkPrompt renders the user prompt for one chunk.
func BuildChunkPrompt(p ChunkPrompt) (string, error) {
	if p.Schema == "" {
		p.Schema = stateSchema
	}
	var b strings.Builder
	if err := chunkTemplate.Execute(&b, p); err != nil {
		return "", err
	}
	return b.String(), nil
}
