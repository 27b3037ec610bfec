package runner

import (
	"os"
	"path/filepath"
	"strings"
)

// testEnv is the environment test children run with: the parent environment
// plus the freshly built engine libraries on LD_LIBRARY_PATH and, when
// configured, a jemalloc build on LD_PRELOAD.
func testEnv(installDir, jemalloc string) []string {
	env := prependPathVar(os.Environ(), "LD_LIBRARY_PATH", filepath.Join(installDir, "lib"))
	if jemalloc != "" {
		env = prependPathVar(env, "LD_PRELOAD", filepath.Clean(jemalloc))
	}
	return env
}

// prependPathVar prepends value to the colon separated list variable name,
// adding the variable when absent.
func prependPathVar(env []string, name, value string) []string {
	prefix := name + "="
	for i, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		if rest := kv[len(prefix):]; rest != "" {
			env[i] = prefix + value + ":" + rest
		} else {
			env[i] = prefix + value
		}
		return env
	}
	return append(env, prefix+value)
}
