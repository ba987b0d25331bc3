// Package schema inspects the OpenAPI documents written by extraction.
//
// Every document is checked against an embedded structural JSON Schema; a
// document failing that check is rejected. OpenAPI 3.0.x documents are also
// run through a full OpenAPI validation whose findings are only reported as
// warnings, since generators accept documents the validator does not (numeric
// exclusiveMinimum from pydantic v1, for one). 3.1 documents, emitted by
// current FastAPI releases, are checked structurally only.
package schema

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
)

//go:embed document.schema.json
var documentSchema []byte

const documentSchemaURL = "https://clientgen.local/schemas/openapi-document.json"

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func structure() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(documentSchemaURL, bytes.NewReader(documentSchema)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = compiler.Compile(documentSchemaURL)
	})
	return compiled, compileErr
}

// Summary describes a schema document.
type Summary struct {
	OpenAPI    string `json:"openapi"`
	Title      string `json:"title"`
	Version    string `json:"version"`
	Paths      int    `json:"paths"`
	Operations int    `json:"operations"`

	// Warnings lists OpenAPI validation findings that do not block generation.
	Warnings []string `json:"warnings,omitempty"`
}

// String renders the summary for status lines.
func (s Summary) String() string {
	return fmt.Sprintf("%s %s (OpenAPI %s, %d paths, %d operations)",
		s.Title, s.Version, s.OpenAPI, s.Paths, s.Operations)
}

// Load reads and inspects the document at path.
//
// Returns:
//   - *Summary: Title, version and route counts
//   - error: CodeInvalidArgument when the document is malformed, CodeNotFound when missing
func Load(ctx context.Context, path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.CodeNotFound, "schema.load", err, "schema document %s was not written", path)
		}
		return nil, errors.Wrap(errors.CodeInternal, "schema.load", err)
	}
	sum, err := Inspect(ctx, data)
	if err != nil {
		return nil, errors.Wrapf(errors.CodeOf(err), "schema.load", err, "invalid schema document %s", path)
	}
	return sum, nil
}

// Inspect validates a document held in memory.
//
// Returns:
//   - *Summary: Route counts plus non-blocking OpenAPI validation warnings
//   - error: CodeInvalidArgument when the document is not JSON or fails the structural check
func Inspect(ctx context.Context, data []byte) (*Summary, error) {
	sch, err := structure()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "schema.compile", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "schema.parse", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "schema.structure", err)
	}

	sum := summarize(doc.(map[string]any))

	if strings.HasPrefix(sum.OpenAPI, "3.0.") {
		if err := validateOpenAPI(ctx, data); err != nil {
			sum.Warnings = append(sum.Warnings, err.Error())
		}
	}
	return sum, nil
}

// validateOpenAPI loads data with kin-openapi and validates it.
func validateOpenAPI(ctx context.Context, data []byte) error {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "schema.openapi", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "schema.openapi", err)
	}
	return nil
}

func summarize(doc map[string]any) *Summary {
	info, _ := doc["info"].(map[string]any)
	paths, _ := doc["paths"].(map[string]any)

	sum := &Summary{Paths: len(paths)}
	sum.OpenAPI, _ = doc["openapi"].(string)
	sum.Title, _ = info["title"].(string)
	sum.Version, _ = info["version"].(string)

	for _, item := range paths {
		ops, _ := item.(map[string]any)
		for method := range ops {
			if httpMethods[method] {
				sum.Operations++
			}
		}
	}
	return sum
}
