package config_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sipwire/core/config"
	"github.com/sipwire/core/log"
)

func schemaAbcDefGih() config.Schema {
	return config.Schema{
		{Key: "abc", Type: config.TypeInteger, ListOf: true},
		{Key: "def", Type: config.TypeString, Normalize: true},
		{Key: "gih", Type: config.TypeSIPURL},
	}
}

func TestCheck_SeedScenario1(t *testing.T) {
	snapshot := config.ConfigSnapshot{
		{Key: "abc", Value: []any{9, 8, 7}, Source: "test"},
		{Key: "def", Value: "LowerCASEme", Source: "test"},
		{Key: "gih", Value: "sip:dontparse.example.org", Source: "test"},
	}

	got, err := config.Check(snapshot, schemaAbcDefGih(), "app1", config.Capabilities{}, log.Noop())
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	want := config.ConfigSnapshot{
		{Key: "abc", Value: []any{9, 8, 7}, Source: "test"},
		{Key: "def", Value: "lowercaseme", Source: "test"},
		{Key: "gih", Value: "sip:dontparse.example.org", Source: "test"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Check result mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_SeedScenario2(t *testing.T) {
	schema := config.Schema{{Key: "test", Type: config.TypeSymbol}}
	snapshot := config.ConfigSnapshot{{Key: "test", Value: []any{true, false}, Source: "test_backend"}}

	_, err := config.Check(snapshot, schema, "", config.Capabilities{}, log.Noop())
	if err == nil {
		t.Fatal("expected an error")
	}
	const want = "parameter 'test' has invalid value ([true,false]) - expected symbol : invalid type"
	if got := err.Error(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
	if !errors.Is(err, config.ErrTypeMismatch) {
		t.Errorf("error does not wrap ErrTypeMismatch: %v", err)
	}
}

func TestCheck_SeedScenario3(t *testing.T) {
	schema := config.Schema{{Key: "test", Type: config.TypeInteger}}
	snapshot := config.ConfigSnapshot{{Key: "test", Value: "string", Source: "test_backend"}}

	_, err := config.Check(snapshot, schema, "", config.Capabilities{}, log.Noop())
	if err == nil {
		t.Fatal("expected an error")
	}
	const want = `parameter 'test' has invalid value ("string") - expected integer : invalid type`
	if got := err.Error(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestCheck_SeedScenario4(t *testing.T) {
	schema := config.Schema{{Key: "req", Type: config.TypeString, Required: true}}
	snapshot := config.ConfigSnapshot{{Key: "req", Value: "", Source: "test"}}

	_, err := config.Check(snapshot, schema, "", config.Capabilities{}, log.Noop())
	if err == nil {
		t.Fatal("expected an error")
	}
	const want = "Required parameter 'req' may not have empty value"
	if got := err.Error(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
	if !errors.Is(err, config.ErrEmpty) {
		t.Errorf("error does not wrap ErrEmpty: %v", err)
	}
}

func TestCheck_UnknownKey(t *testing.T) {
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "nope", Value: 1, Source: "test"}},
		config.Schema{},
		"",
		config.Capabilities{},
		log.Noop(),
	)
	if !errors.Is(err, config.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestCheck_RequiredMissing(t *testing.T) {
	schema := config.Schema{{Key: "req", Type: config.TypeString, Required: true}}
	_, err := config.Check(nil, schema, "", config.Capabilities{}, log.Noop())
	if !errors.Is(err, config.ErrRequired) {
		t.Fatalf("expected ErrRequired, got %v", err)
	}
	const want = "Required parameter 'req' not set"
	if got := err.Error(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestCheck_UndefinedBypassesTypeChecking(t *testing.T) {
	schema := config.Schema{{Key: "opt", Type: config.TypeInteger}}
	snapshot := config.ConfigSnapshot{{Key: "opt", Value: config.Undefined, Source: "defaults"}}

	got, err := config.Check(snapshot, schema, "", config.Capabilities{}, log.Noop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Value != config.Undefined {
		t.Fatalf("expected the undefined entry to pass through unchanged, got %+v", got)
	}
}

func TestCheck_StringLengthOneRejected(t *testing.T) {
	schema := config.Schema{{Key: "s", Type: config.TypeString}}
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "s", Value: "a", Source: "test"}},
		schema, "", config.Capabilities{}, log.Noop(),
	)
	if !errors.Is(err, config.ErrTypeMismatch) {
		t.Fatalf("expected a length-1 string to be rejected as a type mismatch, got %v", err)
	}
}

func TestCheck_IntegerWhereStringExpectedRejected(t *testing.T) {
	schema := config.Schema{{Key: "s", Type: config.TypeString}}
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "s", Value: 42, Source: "test"}},
		schema, "", config.Capabilities{}, log.Noop(),
	)
	if !errors.Is(err, config.ErrTypeMismatch) {
		t.Fatalf("expected an integer passed for a string parameter to be rejected, got %v", err)
	}
}

func TestCheck_ListShapeMismatch(t *testing.T) {
	schema := config.Schema{{Key: "l", Type: config.TypeInteger, ListOf: true}}
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "l", Value: 5, Source: "test"}},
		schema, "", config.Capabilities{}, log.Noop(),
	)
	if !errors.Is(err, config.ErrShape) {
		t.Fatalf("expected ErrShape for a singleton where a list is required, got %v", err)
	}
}

func TestCheck_ListElementIndexInMessage(t *testing.T) {
	schema := config.Schema{{Key: "l", Type: config.TypeInteger, ListOf: true}}
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "l", Value: []any{1, "bad", 3}, Source: "test"}},
		schema, "", config.Capabilities{}, log.Noop(),
	)
	const want = `parameter 'l' has invalid value (#2 in list ("bad")) - expected integer : invalid type`
	if err == nil || err.Error() != want {
		t.Fatalf("error = %v, want %q", err, want)
	}
}

func TestCheck_IdempotentOnAlreadyNormalizedSnapshot(t *testing.T) {
	schema := config.Schema{
		{Key: "sym", Type: config.TypeSymbol, Normalize: true},
		{Key: "str", Type: config.TypeString, Normalize: true},
		{Key: "url", Type: config.TypeSIPURL, Normalize: true},
	}
	snapshot := config.ConfigSnapshot{
		{Key: "sym", Value: config.Symbol("MixedCase"), Source: "test"},
		{Key: "str", Value: "MixedCase", Source: "test"},
		{Key: "url", Value: "sip:alice@example.com", Source: "test"},
	}

	once, err := config.Check(snapshot, schema, "", config.Capabilities{}, log.Noop())
	if err != nil {
		t.Fatalf("first Check failed: %v", err)
	}
	twice, err := config.Check(once, schema, "", config.Capabilities{}, log.Noop())
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Check is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestCheck_LocalKeyDelegatesToLocalValidator(t *testing.T) {
	caps := config.Capabilities{
		LocalValidator: localValidatorFunc(func(key string, value any, source string) (any, error) {
			return "normalized:" + value.(string), nil
		}),
	}
	got, err := config.Check(
		config.ConfigSnapshot{{Key: "local_extra", Value: "x", Source: "test"}},
		config.Schema{}, "", caps, log.Noop(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Value != "normalized:x" {
		t.Fatalf("got %+v", got)
	}
}

func TestCheck_LocalValidatorPanicBecomesLocalValidatorError(t *testing.T) {
	caps := config.Capabilities{
		LocalValidator: localValidatorFunc(func(string, any, string) (any, error) {
			panic("boom")
		}),
	}
	_, err := config.Check(
		config.ConfigSnapshot{{Key: "local_extra", Value: "x", Source: "test"}},
		config.Schema{}, "", caps, log.Noop(),
	)
	if !errors.Is(err, config.ErrLocalValidator) {
		t.Fatalf("expected ErrLocalValidator, got %v", err)
	}
}

type localValidatorFunc func(key string, value any, source string) (any, error)

func (f localValidatorFunc) Validate(key string, value any, source string) (any, error) {
	return f(key, value, source)
}
