package protocol_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"stargen.ai/internal/protocol"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func decode(t *testing.T, b []byte) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

func validate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	generateSchema := compile(t, "generate.schema.json")
	errorSchema := compile(t, "error.schema.json")
	welcomeSchema := compile(t, "welcome.schema.json")

	validate(t, generateSchema, decode(t, []byte(`{
	  "type":"GENERATE",
	  "protocol_version":"1.0",
	  "req_id":"r1",
	  "seed":42,
	  "stellar_mass":1.0,
	  "stellar_luminosity":1.0,
	  "moons":true
	}`)))
	validate(t, generateSchema, decode(t, []byte(`{"type":"GENERATE","protocol_version":"1.0"}`)))

	if err := generateSchema.Validate(decode(t, []byte(`{"type":"GENERATE","protocol_version":"1.0","stellar_mass":-1}`))); err == nil {
		t.Fatalf("negative stellar mass should not validate")
	}
	if err := generateSchema.Validate(decode(t, []byte(`{"type":"GENERATE","protocol_version":"1.0","planets":3}`))); err == nil {
		t.Fatalf("unknown fields should not validate")
	}

	validate(t, errorSchema, decode(t, []byte(`{
	  "type":"ERROR",
	  "protocol_version":"1.0",
	  "req_id":"r1",
	  "code":"E_INVALID_PARAMETER",
	  "message":"stellar mass must be positive"
	}`)))
	validate(t, welcomeSchema, decode(t, []byte(`{"type":"WELCOME","protocol_version":"1.0","session_id":"s1","moons":true}`)))
}

func TestSchemas_ValidateEncodedMessages(t *testing.T) {
	systemSchema := compile(t, "system.schema.json")
	errorSchema := compile(t, "error.schema.json")
	generateSchema := compile(t, "generate.schema.json")

	sys, err := accrete.Generate(accrete.SolarConfig(), tuning.Defaults(), rng.New(42), accrete.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := protocol.NewSystemMsg("r1", "run-1", 42, digest.SystemDigest(sys), sys)
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	validate(t, systemSchema, decode(t, b))

	for _, code := range []string{protocol.ErrBadRequest, protocol.ErrDidNotConverge, protocol.ErrStalled} {
		b, _ := json.Marshal(protocol.NewErrorMsg("r2", code, "boom"))
		validate(t, errorSchema, decode(t, b))
	}

	seed := int64(-5)
	moons := false
	b, _ = json.Marshal(protocol.GenerateMsg{Type: protocol.TypeGenerate, ProtocolVersion: protocol.Version, Seed: &seed, Moons: &moons})
	validate(t, generateSchema, decode(t, b))
}
