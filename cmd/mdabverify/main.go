// Command mdabverify is the CLI shell over pkg/verifier. It owns
// exit-code mapping, flag parsing, and the plain-text PASS/FAIL wire
// protocol; every actual verification decision is made by pkg/verifier.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fazoncore/mdab-tel-cts/pkg/keybundle"
	"github.com/fazoncore/mdab-tel-cts/pkg/report"
	"github.com/fazoncore/mdab-tel-cts/pkg/verifier"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

const defaultKeysRelPath = "keys/verifier_keys.json"

// Run is the testable entrypoint; main only maps its return value to
// the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mdabverify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		profileFlag string
		keysFlag    string
		jsonOut     bool
		jsonOutFile string
	)
	fs.StringVar(&profileFlag, "profile", "audit", "verification profile: core, audit, or ha")
	fs.StringVar(&keysFlag, "keys", "", "path to the key bundle (default: "+defaultKeysRelPath+", resolved relative to the verifier root)")
	fs.BoolVar(&jsonOut, "json", false, "also print a structured JSON report to stdout")
	fs.StringVar(&jsonOutFile, "json-out", "", "write a structured, reproducible (RFC 8785) JSON report to this path")

	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: mdabverify [--profile core|audit|ha] [--keys PATH] [--json] [--json-out PATH] <stream-file>")
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "Usage: mdabverify [--profile core|audit|ha] [--keys PATH] [--json] [--json-out PATH] <stream-file>")
		return 2
	}
	streamPath := rest[0]

	profile := verifier.Profile(profileFlag)
	if !profile.Valid() {
		fmt.Fprintf(stderr, "Error: invalid --profile %q (want core, audit, or ha)\n", profileFlag)
		return 2
	}

	keysPath := keysFlag
	if keysPath == "" {
		keysPath = resolveDefaultKeysPath()
	}

	f, err := os.Open(streamPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot open %s: %v\n", streamPath, err)
		return 2
	}
	defer f.Close()

	loadKeys := func() (*keybundle.Bundle, error) {
		return keybundle.Load(keysPath)
	}

	// ha loads the key bundle eagerly: a bad bundle is a fatal,
	// non-line-numbered failure before any event is read.
	if profile == verifier.ProfileHA {
		if _, err := loadKeys(); err != nil {
			slog.Error("key bundle load failed", "path", keysPath, "error", err)
			fmt.Fprintf(stderr, "Error: key bundle: %v\n", err)
			return 2
		}
	}

	res, err := verifier.VerifyStream(f, profile, loadKeys)
	if err != nil {
		slog.Error("verification run failed", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOut || jsonOutFile != "" {
		if rc := emitReport(streamPath, profile, res, stdout, stderr, jsonOut, jsonOutFile); rc != 0 {
			return rc
		}
	}

	if !res.Pass {
		fmt.Fprintln(stdout, "=== RESULT: FAIL ===")
		if res.Detail != "" {
			fmt.Fprintf(stdout, "[FAIL] line=%d %s (%s)\n", res.Line, res.Code, res.Detail)
		} else {
			fmt.Fprintf(stdout, "[FAIL] line=%d %s\n", res.Line, res.Code)
		}
		return 1
	}

	fmt.Fprintln(stdout, "=== RESULT: PASS ===")
	return 0
}

func emitReport(streamPath string, profile verifier.Profile, res *verifier.Result, stdout, stderr io.Writer, jsonOut bool, jsonOutFile string) int {
	rep := report.FromResult(streamPath, profile, res, time.Now())

	if jsonOut {
		pretty, err := rep.Pretty()
		if err != nil {
			fmt.Fprintf(stderr, "Error: building report: %v\n", err)
			return 2
		}
		fmt.Fprintln(stdout, string(pretty))
	}

	if jsonOutFile != "" {
		canon, err := rep.Canonical()
		if err != nil {
			fmt.Fprintf(stderr, "Error: building report: %v\n", err)
			return 2
		}
		if err := os.WriteFile(jsonOutFile, canon, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: writing --json-out: %v\n", err)
			return 2
		}
	}
	return 0
}

// resolveDefaultKeysPath resolves "keys/verifier_keys.json" relative to
// the verifier binary's own directory, falling back to the current
// working directory if the executable's own path cannot be determined.
func resolveDefaultKeysPath() string {
	exe, err := os.Executable()
	if err != nil {
		return defaultKeysRelPath
	}
	root, err := filepath.EvalSymlinks(filepath.Dir(exe))
	if err != nil {
		root = filepath.Dir(exe)
	}
	return filepath.Join(root, defaultKeysRelPath)
}
