//go:build windows

package driver

import (
	"os/exec"
	"strings"
)

// FindRuntime locates the given capture binary on PATH, appending the .exe
// suffix when it is missing.
func FindRuntime(runtime string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(runtime), ".exe") {
		runtime += ".exe"
	}

	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", err
	}

	return binPath, nil
}
