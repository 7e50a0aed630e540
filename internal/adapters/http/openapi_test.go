package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	// Start from the current working directory or test file location
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPISpec validates the OpenAPI specification is valid.
func TestOpenAPISpec(t *testing.T) {
	// Load the spec file
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	// Parse YAML spec
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	// Validate the spec
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	// Check that key paths exist
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/provider",
		"/v1/widgets/attribute-choices",
		"/v1/widgets/{id}",
		"/v1/widgets/{id}/map",
		"/v1/widgets/{id}/locations.geojson",
		"/v1/classes/{class}/geolocation-attributes",
		"/v1/entities/{class}/{key}/fields/{code}",
		"/v1/entities/{class}/{key}/fields/{code}/edit",
		"/v1/entities/{class}/{key}/fields/{code}/render",
		"/v1/geocode",
		"/v1/staticmap",
		"/v1/project",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	// Verify key schemas exist
	expectedSchemas := []string{
		"Coordinate",
		"RDPoint",
		"ProviderSpec",
		"AttributeSchema",
		"LocationRecord",
		"MapConfig",
		"FieldEditPayload",
		"Widget",
		"LocationChanged",
		"GeocodeResult",
		"APIError",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	if spec.Info.Title != "GeoMap API" {
		t.Errorf("expected title 'GeoMap API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}

// TestOpenAPIPropertyDescriptions checks descriptions containing commas
// survive as single values.
func TestOpenAPIPropertyDescriptions(t *testing.T) {
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}
	spec, err := (&openapi3.Loader{IsExternalRefsAllowed: false}).LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	cases := []struct {
		schema, property, want string
	}{
		{"GeocodeResult", "distance_m", "Distance from near, when given"},
		{"LocationChanged", "value", "Stored lat,lng text; empty when cleared"},
	}
	for _, tc := range cases {
		s := spec.Components.Schemas[tc.schema]
		if s == nil || s.Value == nil {
			t.Fatalf("schema %s missing", tc.schema)
		}
		if len(s.Value.Extensions) != 0 {
			t.Errorf("%s: unexpected extra fields %v", tc.schema, s.Value.Extensions)
		}
		prop := s.Value.Properties[tc.property]
		if prop == nil || prop.Value == nil {
			t.Fatalf("%s.%s missing", tc.schema, tc.property)
		}
		if prop.Value.Description != tc.want {
			t.Errorf("%s.%s description = %q, want %q", tc.schema, tc.property, prop.Value.Description, tc.want)
		}
		if len(prop.Value.Extensions) != 0 {
			t.Errorf("%s.%s: unexpected extra fields %v", tc.schema, tc.property, prop.Value.Extensions)
		}
	}
}
