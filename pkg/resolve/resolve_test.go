package resolve_test

import (
	"os"
	"testing"

	"github.com/conduit-run/conduit/pkg/resolve"
)

func TestResolveRunArgTakesPrecedenceOverEnv(t *testing.T) {
	t.Setenv("CONDUIT_TEST_VAR", "from-env")
	out, err := resolve.Resolve("value: ${CONDUIT_TEST_VAR}", resolve.Args{"CONDUIT_TEST_VAR": "from-arg"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "value: from-arg" {
		t.Fatalf("got %q", out)
	}
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv("CONDUIT_TEST_VAR2", "env-value")
	out, err := resolve.Resolve("value: ${CONDUIT_TEST_VAR2}", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "value: env-value" {
		t.Fatalf("got %q", out)
	}
}

func TestResolveDefaultClauseAppliesWhenUnset(t *testing.T) {
	os.Unsetenv("CONDUIT_TEST_VAR3")
	out, err := resolve.Resolve("value: ${CONDUIT_TEST_VAR3:-fallback}", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "value: fallback" {
		t.Fatalf("got %q", out)
	}
}

func TestResolveBareUnresolvedVariableIsBuildError(t *testing.T) {
	os.Unsetenv("CONDUIT_TEST_VAR4")
	_, err := resolve.Resolve("value: ${CONDUIT_TEST_VAR4}", nil)
	if err == nil {
		t.Fatal("expected error for unresolved bare variable")
	}
}

func TestResolveArgOverridesDefaultClause(t *testing.T) {
	out, err := resolve.Resolve("value: ${NAME:-anon}", resolve.Args{"NAME": "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "value: alice" {
		t.Fatalf("got %q", out)
	}
}
