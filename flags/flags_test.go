package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUniqueFlags asserts that no flag names or env vars collide.
func TestUniqueFlags(t *testing.T) {
	seenNames := map[string]struct{}{}
	seenEnvVars := map[string]struct{}{}
	for _, flag := range Flags {
		name := flag.Names()[0]
		_, ok := seenNames[name]
		require.False(t, ok, "duplicate flag name %s", name)
		seenNames[name] = struct{}{}

		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		require.True(t, ok, "flag %s has no env vars", name)
		for _, envVar := range envFlag.GetEnvVars() {
			_, ok := seenEnvVars[envVar]
			require.False(t, ok, "duplicate env var %s", envVar)
			seenEnvVars[envVar] = struct{}{}
		}
	}
}

func TestEnvVarPrefix(t *testing.T) {
	for _, flag := range Flags {
		envFlag := flag.(interface{ GetEnvVars() []string })
		for _, envVar := range envFlag.GetEnvVars() {
			require.True(t, strings.HasPrefix(envVar, EnvVarPrefix+"_"),
				"env var %s missing %s prefix", envVar, EnvVarPrefix)
		}
	}
}
