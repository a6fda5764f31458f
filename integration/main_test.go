//go:build integration
// +build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AshramC/YXZX-ARG/integration/runner"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")

func TestMain(m *testing.M) {
	fmt.Printf("Running YXZX ARG Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", baseURL())
	os.Exit(m.Run())
}

func baseURL() string {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newRunner() *runner.Runner {
	r := runner.NewRunner(baseURL())
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 120)) * time.Second
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	return r
}

func TestIntegrationSuites(t *testing.T) {
	files, err := discoverTestFiles("cases")
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No test files found in cases directory")
	}
	runSuites(t, files)
}

// TestSingleSuite runs individual cases: -case "ending_good,full_playthrough"
func TestSingleSuite(t *testing.T) {
	flag.Parse()
	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}

	var files []string
	for _, name := range strings.Split(*caseFlag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		files = append(files, filepath.Join("cases", name))
	}
	runSuites(t, files)
}

func runSuites(t *testing.T, files []string) {
	t.Helper()
	r := newRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failed []string
	for i, file := range files {
		suite, err := runner.LoadTestSuite(file)
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}

		t.Logf("[%d/%d] Starting test suite: %s", i+1, len(files), suite.Name)
		result, err := r.RunSuite(ctx, suite)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", suite.Name, err))
			t.Errorf("[%d/%d] FAILED: %s: %v", i+1, len(files), suite.Name, err)
			continue
		}
		t.Logf("[%d/%d] PASSED: %s in %v (%d requests)", i+1, len(files), suite.Name, result.Duration, result.Requests)
	}

	t.Logf("\nIntegration Test Summary:")
	t.Logf("   Passed: %d", len(files)-len(failed))
	t.Logf("   Failed: %d", len(failed))
	if len(failed) > 0 {
		t.Fatalf("Integration tests failed:\n   - %s", strings.Join(failed, "\n   - "))
	}
}

func discoverTestFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
