package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "github.com/woowenjun99/CG4002-Evaluation-Server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under from importing anything under any of deny.
type rule struct {
	from string
	deny []string
}

// The wire and simulation layers stay independent of the session and the
// relay that drive them; logging never depends on the layers it records.
var rules = []rule{
	{from: "/internal/clock", deny: []string{"/internal/", "/logging"}},
	{from: "/internal/scenario", deny: []string{"/internal/combat", "/internal/protocol", "/internal/session", "/internal/relay", "/internal/app", "/logging"}},
	{from: "/internal/combat", deny: []string{"/internal/protocol", "/internal/session", "/internal/relay", "/internal/app", "/logging"}},
	{from: "/internal/protocol", deny: []string{"/internal/session", "/internal/relay", "/internal/app", "/logging"}},
	{from: "/internal/session", deny: []string{"/internal/relay", "/internal/app"}},
	{from: "/logging", deny: []string{"/internal/session", "/internal/relay", "/internal/app", "/internal/protocol"}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	packages, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if violations := check(packages, rules); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var packages []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return packages, nil
			}
			return nil, err
		}
		packages = append(packages, pkg)
	}
}

func check(packages []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range packages {
		for _, r := range rules {
			if !under(pkg.ImportPath, modulePath+r.from) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, deny := range r.deny {
					target := modulePath + deny
					if under(imp, strings.TrimSuffix(target, "/")) && !under(imp, modulePath+r.from) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
