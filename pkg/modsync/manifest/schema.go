package manifest

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// getSchema compiles the embedded JSON schema once and returns it.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("manifest.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// CheckSchema reports structural problems in a raw manifest document, such
// as unknown fields or values of the wrong JSON type. The error return is
// reserved for documents that are not JSON at all.
func CheckSchema(data []byte) ([]ValidationError, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}

	var issues []ValidationError
	collectSchemaIssues(ve, &issues)
	if len(issues) == 0 {
		issues = append(issues, ValidationError{Index: -1, Field: "manifest", Message: ve.Error()})
	}
	return dedupe(issues), nil
}

func collectSchemaIssues(ve *jsonschema.ValidationError, issues *[]ValidationError) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collectSchemaIssues(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}

	keyword := ""
	if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
		keyword = kw[len(kw)-1]
	}
	if keyword == "allOf" || keyword == "$ref" {
		return
	}

	issue := ValidationError{Index: -1, Message: ve.ErrorKind.LocalizedString(printer)}
	loc := ve.InstanceLocation
	if len(loc) >= 2 && loc[0] == "entries" {
		if i, err := strconv.Atoi(loc[1]); err == nil {
			issue.Index = i
			loc = loc[2:]
		}
	}
	issue.Field = strings.Join(loc, ".")
	if issue.Field == "" {
		if issue.Index >= 0 {
			issue.Field = "entry"
		} else {
			issue.Field = "manifest"
		}
	}
	*issues = append(*issues, issue)
}

func dedupe(issues []ValidationError) []ValidationError {
	seen := make(map[string]bool, len(issues))
	out := issues[:0]
	for _, is := range issues {
		key := is.Error()
		if !seen[key] {
			seen[key] = true
			out = append(out, is)
		}
	}
	return out
}
