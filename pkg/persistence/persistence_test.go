package persistence

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Policy{
		"":                        None,
		"none":                    None,
		"RESEND_QUERY":            ResendQuery,
		"resend-query-individual": ResendQueryIndividual,
		" exact ":                 Exact,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := Parse("forever"); err == nil {
		t.Error("Parse(forever) should fail")
	}
}

func TestString(t *testing.T) {
	if ResendQueryIndividual.String() != "RESEND_QUERY_INDIVIDUAL" {
		t.Errorf("String = %s", ResendQueryIndividual)
	}
	if Policy(9).String() != "Policy(9)" {
		t.Errorf("unknown String = %s", Policy(9))
	}
}

func TestJSON(t *testing.T) {
	var v struct {
		P Policy `json:"p"`
	}
	if err := json.Unmarshal([]byte(`{"p":"resend_query"}`), &v); err != nil || v.P != ResendQuery {
		t.Fatalf("Unmarshal = %v, %v", v.P, err)
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) != `{"p":"RESEND_QUERY"}` {
		t.Errorf("Marshal = %s, %v", b, err)
	}
	if err := json.Unmarshal([]byte(`{"p":3}`), &v); err == nil {
		t.Error("numeric policy should fail")
	}
}
