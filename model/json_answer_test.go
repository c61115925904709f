package model

import "testing"

func TestExtractJSONAnswer_FencedBlock(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"plan\": {\"subquestions\": [{\"id\": \"q1\"}]}}\n```\nDone."
	got := ExtractJSONAnswer(raw)
	if got == nil {
		t.Fatalf("expected non-nil JSONAnswer")
	}
	plan, ok := got["plan"].(map[string]any)
	if !ok {
		t.Fatalf("expected plan key, got %#v", got)
	}
	if _, ok := plan["subquestions"]; !ok {
		t.Fatalf("expected subquestions key, got %#v", plan)
	}
}

func TestExtractJSONAnswer_BalancedBraces(t *testing.T) {
	raw := `The decision is {"is_valid": true, "confidence": 0.9} as requested.`
	got := ExtractJSONAnswer(raw)
	if got == nil {
		t.Fatalf("expected non-nil JSONAnswer")
	}
	if got["is_valid"] != true {
		t.Fatalf("expected is_valid true, got %#v", got)
	}
}

func TestExtractJSONAnswer_NestedBraces(t *testing.T) {
	raw := `{"a": {"b": {"c": 1}}, "d": 2}`
	got := ExtractJSONAnswer(raw)
	if got == nil {
		t.Fatalf("expected non-nil JSONAnswer")
	}
	if got["d"] != float64(2) {
		t.Fatalf("expected d=2, got %#v", got["d"])
	}
}

func TestExtractJSONAnswer_BracesInsideString(t *testing.T) {
	raw := `prefix {"text": "a { b } c", "n": 3} suffix`
	got := ExtractJSONAnswer(raw)
	if got == nil {
		t.Fatalf("expected non-nil JSONAnswer")
	}
	if got["n"] != float64(3) {
		t.Fatalf("expected n=3, got %#v", got["n"])
	}
}

func TestExtractJSONAnswer_NoJSON(t *testing.T) {
	if got := ExtractJSONAnswer("just plain prose, nothing here"); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}
