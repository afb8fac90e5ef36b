package pty

import (
	"reflect"
	"runtime"
	"testing"
)

func TestBuildArgvPassthrough(t *testing.T) {
	got := BuildArgv("grep", []string{"-r", "some pattern"}, false)
	want := []string{"grep", "-r", "some pattern"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgv() = %v, want %v", got, want)
	}
}

func TestBuildArgvViaShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell quoting")
	}

	got := BuildArgv("echo", []string{"a b", "c"}, true)
	if len(got) != 3 || got[0] != "/bin/sh" || got[1] != "-c" {
		t.Fatalf("BuildArgv() = %v, want /bin/sh -c prefix", got)
	}
	// Quoting must keep "a b" a single word after the shell re-splits.
	if got[2] != `echo 'a b' c` {
		t.Errorf("joined command = %q, want %q", got[2], `echo 'a b' c`)
	}
}

func TestBuildArgvNoArgs(t *testing.T) {
	got := BuildArgv("ls", nil, false)
	if len(got) != 1 || got[0] != "ls" {
		t.Errorf("BuildArgv() = %v, want [ls]", got)
	}
}
