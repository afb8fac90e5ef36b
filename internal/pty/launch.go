package pty

import (
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
)

// BuildArgv resolves the argument vector for a launch request. By
// default the command and arguments pass through untouched. When
// viaShell is set the command line is routed through the system shell,
// quoted so that arguments survive the round trip intact.
func BuildArgv(command string, args []string, viaShell bool) []string {
	if !viaShell {
		return append([]string{command}, args...)
	}

	words := append([]string{command}, args...)
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", strings.Join(words, " ")}
	}
	return []string{"/bin/sh", "-c", shellquote.Join(words...)}
}
