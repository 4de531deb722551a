package apiclient

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vbonduro/foodiepass/internal/apperr"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	scanResponseSchema   = mustCompile("scan_response")
	surveyResponseSchema = mustCompile("survey_response")
	languagesSchema      = mustCompile("languages")
	currenciesSchema     = mustCompile("currencies")
)

func mustCompile(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://foodiepass.schemas.local/%s.schema.json", name)
	if err := c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return compiled
}

// decodeValidated parses body as JSON, checks it against schema and only then
// maps it onto out. Any failure is a protocol error.
func decodeValidated(body []byte, schema *jsonschema.Schema, out any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperr.New(apperr.KindProtocol, fmt.Errorf("failed to decode response: %w", err))
	}
	if err := schema.Validate(doc); err != nil {
		return apperr.New(apperr.KindProtocol, fmt.Errorf("response violates schema: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.New(apperr.KindProtocol, fmt.Errorf("failed to map response: %w", err))
	}
	return nil
}
