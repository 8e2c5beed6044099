package tools

import (
	"strings"
	"testing"
)

func TestManifest(t *testing.T) {
	manifest, err := Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(manifest) != 9 {
		t.Fatalf("expected 9 tools, got %d", len(manifest))
	}

	byName := make(map[string]Tool, len(manifest))
	for _, tool := range manifest {
		if tool.Name == "" || tool.Description == "" {
			t.Errorf("tool missing name or description: %+v", tool)
		}
		if tool.Method == "" || tool.Path == "" {
			t.Errorf("tool %s missing method or path", tool.Name)
		}
		byName[tool.Name] = tool
	}

	seats, ok := byName["search_flight_seats"]
	if !ok {
		t.Fatal("search_flight_seats missing from manifest")
	}
	if seats.InputSchema == nil {
		t.Fatal("search_flight_seats has no input schema")
	}
	if seats.InputSchema.Properties["departure_time"] == nil {
		t.Error("seat schema missing departure_time property")
	}
	desc := seats.InputSchema.Properties["seat_type"].Description
	if !strings.Contains(desc, "window") {
		t.Errorf("seat_type description = %q, want mention of window", desc)
	}

	list, ok := byName["list_tickets"]
	if !ok {
		t.Fatal("list_tickets missing from manifest")
	}
	if list.InputSchema != nil {
		t.Error("list_tickets should take no parameters")
	}

	booking := byName["insert_ticket"]
	if booking.Method != "POST" {
		t.Errorf("insert_ticket method = %q, want POST", booking.Method)
	}
}

func TestRequiredFields(t *testing.T) {
	manifest, err := Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	for _, tool := range manifest {
		if tool.Name != "validate_ticket" {
			continue
		}
		required := make(map[string]bool)
		for _, f := range tool.InputSchema.Required {
			required[f] = true
		}
		for _, f := range []string{"airline", "flight_number", "departure_airport", "departure_time"} {
			if !required[f] {
				t.Errorf("validate_ticket schema missing required field %s", f)
			}
		}
		return
	}
	t.Fatal("validate_ticket missing from manifest")
}

func TestMarshalYAML(t *testing.T) {
	manifest, err := Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	out, err := MarshalYAML(manifest)
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	text := string(out)
	for _, want := range []string{"tools:", "search_airports", "input_schema:", "/tickets/insert"} {
		if !strings.Contains(text, want) {
			t.Errorf("YAML output missing %q", want)
		}
	}
}
