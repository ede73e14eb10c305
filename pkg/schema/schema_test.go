package schema

import "testing"

const tempSchema = `{
	"type": "object",
	"properties": {"celsius": {"type": "number"}},
	"required": ["celsius"]
}`

func TestValidate(t *testing.T) {
	v := NewJSONSchema()
	tests := []struct {
		name    string
		schema  string
		message string
		want    bool
	}{
		{"conforming", tempSchema, `{"celsius": 21.5}`, true},
		{"missing field", tempSchema, `{"fahrenheit": 70}`, false},
		{"wrong type", tempSchema, `{"celsius": "warm"}`, false},
		{"not json", tempSchema, `celsius=21`, false},
		{"empty schema accepts json", "", `[1,2,3]`, true},
		{"empty schema rejects garbage", "", `{`, false},
		{"broken schema rejects", `{"type": 7}`, `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Validate(tt.schema, []byte(tt.message)); got != tt.want {
				t.Errorf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	v := NewJSONSchema()
	if err := v.Compile(tempSchema); err != nil {
		t.Errorf("Compile: %v", err)
	}
	if err := v.Compile(""); err != nil {
		t.Errorf("Compile(empty): %v", err)
	}
	if err := v.Compile(`{"type": 7}`); err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestAcceptAll(t *testing.T) {
	if !(AcceptAll{}).Validate("anything", []byte("not json")) {
		t.Error("AcceptAll must accept")
	}
}
