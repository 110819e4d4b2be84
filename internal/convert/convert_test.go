package convert

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestTextConvert(t *testing.T) {
	in := `{"@fields.title":"x","@timestamp":"y","@user":"z"}`
	out, err := Text{}.Convert([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"title":"x","@timestamp":"y","user":"z"}`
	if string(out) != want {
		t.Fatalf("expected %s, got %s", want, out)
	}
}

func TestTextConvertQueries(t *testing.T) {
	in := `{"query":"@fields.type:nginx AND @message:error","sort":["@timestamp","desc"],"fields":["@source_host","@timestamp_local"]}`
	out, _ := Text{}.Convert([]byte(in))
	want := `{"query":"type:nginx AND message:error","sort":["@timestamp","desc"],"fields":["source_host","@timestamp_local"]}`
	if string(out) != want {
		t.Fatalf("expected %s, got %s", want, out)
	}
}

func TestTextConvertRewritesLiteralContent(t *testing.T) {
	out, _ := Text{}.Convert([]byte(`{"owner":"ops@example.com"}`))
	if string(out) != `{"owner":"opsexample.com"}` {
		t.Fatalf("expected legacy text behaviour, got %s", out)
	}
}

func TestStructuralConvert(t *testing.T) {
	in := `{"@fields.title":"x","@timestamp":"y","@user":"z","owner":"ops@example.com","panels":[{"field":"@fields.host","value_field":"@message"}]}`
	out, err := Structural{}.Convert([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("invalid output %s: %v", out, err)
	}
	want := map[string]any{
		"title":      "x",
		"@timestamp": "y",
		"user":       "z",
		"owner":      "ops@example.com",
		"panels":     []any{map[string]any{"field": "host", "value_field": "message"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStructuralConvertRejectsCollisions(t *testing.T) {
	if _, err := (Structural{}).Convert([]byte(`{"@user":"a","user":"b"}`)); err == nil {
		t.Fatalf("expected collision error")
	}
}

func TestStructuralConvertRejectsInvalidJSON(t *testing.T) {
	if _, err := (Structural{}).Convert([]byte(`{"@user":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestByName(t *testing.T) {
	for mode, want := range map[string]string{"": ModeText, "text": ModeText, "STRUCTURAL": ModeStructural} {
		conv, err := ByName(mode)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", mode, err)
		}
		if conv.Name() != want {
			t.Fatalf("%q: expected %s, got %s", mode, want, conv.Name())
		}
	}
	if _, err := ByName("regex"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
