package transfer

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://github.com/gosuda/vibetodo/schema/export.schema.json"

//go:embed schema/export.schema.json
var exportSchema []byte

type schemas struct {
	envelope *jsonschema.Schema
	task     *jsonschema.Schema
}

var loadSchemas = sync.OnceValues(func() (*schemas, error) { //nolint:gochecknoglobals // compiled once per process
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(schemaURL, bytes.NewReader(exportSchema)); err != nil {
		return nil, fmt.Errorf("transfer.loadSchemas: add resource: %w", err)
	}

	envelope, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("transfer.loadSchemas: compile envelope: %w", err)
	}
	task, err := compiler.Compile(schemaURL + "#/$defs/task")
	if err != nil {
		return nil, fmt.Errorf("transfer.loadSchemas: compile task: %w", err)
	}

	return &schemas{envelope: envelope, task: task}, nil
})

// schemaProblems flattens a validation error into "path: message" leaves.
func schemaProblems(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if path := pointerToPath(e.InstanceLocation); path != "" {
				out = append(out, path+": "+e.Message)
			} else {
				out = append(out, e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	return strings.Join(out, "; ")
}

func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}

	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
