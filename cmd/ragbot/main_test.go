package main

import "testing"

func TestMainWiring(t *testing.T) {
	origSetVersion := setVersionInfo
	origExecute := executeCmd
	origExit := exit
	t.Cleanup(func() {
		setVersionInfo = origSetVersion
		executeCmd = origExecute
		exit = origExit
	})

	var gotVersion string
	setVersionInfo = func(v, c, d string) {
		gotVersion = v
		if v == "" || c == "" || d == "" {
			t.Fatalf("expected version info to be set")
		}
	}
	executeCmd = func() int { return 3 }
	code := -1
	exit = func(c int) { code = c }

	main()

	if gotVersion != version {
		t.Fatalf("expected version %q, got %q", version, gotVersion)
	}
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
}
