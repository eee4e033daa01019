//go:build !unix

package match

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable; only
// the controller itself is killed.
func killProcessGroup(cmd *exec.Cmd) {}
