//go:build linux || darwin

package driver

import (
	"os/exec"
)

// FindRuntime locates the given capture binary on PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", err
	}

	return binPath, nil
}
