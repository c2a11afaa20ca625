package validate

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidate_CreateJob(t *testing.T) {
	v := newTestValidator(t)

	valid := `{"worker":"0x00000000000000000000000000000000000000aa","price":5000000,"deadline":"2030-01-01T00:00:00Z"}`
	if err := v.Validate(CreateJob, []byte(valid)); err != nil {
		t.Fatalf("expected valid create_job body, got: %v", err)
	}

	cases := []struct {
		name string
		body string
	}{
		{"missing worker", `{"price":1,"deadline":"2030-01-01T00:00:00Z"}`},
		{"short address", `{"worker":"0xaa","price":1,"deadline":"2030-01-01T00:00:00Z"}`},
		{"negative price", `{"worker":"0x00000000000000000000000000000000000000aa","price":-1,"deadline":"2030-01-01T00:00:00Z"}`},
		{"fractional price", `{"worker":"0x00000000000000000000000000000000000000aa","price":1.5,"deadline":"2030-01-01T00:00:00Z"}`},
		{"bad deadline", `{"worker":"0x00000000000000000000000000000000000000aa","price":1,"deadline":"tomorrow"}`},
		{"unknown field", `{"worker":"0x00000000000000000000000000000000000000aa","price":1,"deadline":"2030-01-01T00:00:00Z","tip":3}`},
		{"not json", `{"worker":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(CreateJob, []byte(tc.body))
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidate_SubmitResult(t *testing.T) {
	v := newTestValidator(t)

	ok := `{"commitment":"0x` + "ab" + `000000000000000000000000000000000000000000000000000000000000cd","reference":"ipfs://bafy"}`
	if err := v.Validate(SubmitResult, []byte(ok)); err != nil {
		t.Fatalf("expected valid submit body, got: %v", err)
	}
	if err := v.Validate(SubmitResult, []byte(`{"reference":"ipfs://bafy"}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("missing commitment: expected ErrValidation, got: %v", err)
	}
}

func TestValidate_Authorization(t *testing.T) {
	v := newTestValidator(t)

	if err := v.Validate(Authorization, []byte(`{"scope":"stake","address":"0x0000000000000000000000000000000000000003"}`)); err != nil {
		t.Fatalf("expected valid authorization body, got: %v", err)
	}
	if err := v.Validate(Authorization, []byte(`{"scope":"escrow","address":"0x0000000000000000000000000000000000000003"}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown scope: expected ErrValidation, got: %v", err)
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	err := v.Validate("nope", []byte(`{}`))
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("expected non-validation error for unknown schema, got: %v", err)
	}
}
