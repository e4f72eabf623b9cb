package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"
)

// memprofileDir receives heap and allocation profiles when the process
// exits. The flag is hidden from help.
var memprofileDir string

func maybeWriteMemProfile() {
	if memprofileDir == "" {
		return
	}
	if err := writeMemProfiles(memprofileDir, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// writeMemProfiles writes the heap and allocs profiles under dir as
// agentgraph_<kind>_<stamp>.pprof.
func writeMemProfiles(dir string, now time.Time) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	stamp := now.UTC().Format("20060102T150405")
	var err error
	for _, kind := range []string{"heap", "allocs"} {
		err = errors.Join(err, writeProfile(filepath.Join(dir, "agentgraph_"+kind+"_"+stamp+".pprof"), kind))
	}
	return err
}

func writeProfile(path, kind string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", kind, err)
	}
	if err := pprof.Lookup(kind).WriteTo(f, 0); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s profile: %w", kind, err)
	}
	return f.Close()
}
