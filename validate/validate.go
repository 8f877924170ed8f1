// Command validate checks the configuration profiles in a directory
// (../configs by default, or the first argument). For each *.yml profile it
// checks:
//   - YAML structure and value types
//   - Animation phase bounds and notice lifetime
//   - Rules engine URL is an absolute http(s) URL
//   - Server port is a valid TCP port
//   - Session cleanup runs at least once per session lifetime
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wricardo/mcp-training/merge2048/game/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateProfile loads one profile and checks it.
func validateProfile(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	cfg, err := config.Load(filePath)
	if err != nil {
		result.fail("Failed to load profile: %v", err)
		return result
	}

	if err := cfg.Validate(); err != nil {
		msg := strings.TrimPrefix(err.Error(), config.ErrInvalidConfig.Error()+": ")
		for _, line := range strings.Split(msg, "\n") {
			result.fail("%s", line)
		}
	}

	validateEngine(cfg.Engine, &result)
	validateServer(cfg.Server, &result)
	validateSessions(cfg.Sessions, &result)

	if result.Valid {
		t := cfg.Timings()
		result.info("Cycle: slide %v + settle %v = %v", t.Slide, t.Settle, t.Total())
		result.info("Notices dismissed after %v", cfg.Animation.NoticeTTL)
	}
	return result
}

func validateEngine(engine config.Engine, result *ValidationResult) {
	u, err := url.Parse(engine.BaseURL)
	if err != nil {
		result.fail("Engine base-url %q: %v", engine.BaseURL, err)
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		result.fail("Engine base-url %q must use http or https", engine.BaseURL)
		return
	}
	if u.Host == "" {
		result.fail("Engine base-url %q has no host", engine.BaseURL)
		return
	}
	result.info("Engine: %s", engine.BaseURL)
}

func validateServer(server config.Server, result *ValidationResult) {
	port, err := strconv.Atoi(server.Port)
	if err != nil || port < 1 || port > 65535 {
		result.fail("Server port %q must be a number between 1 and 65535", server.Port)
		return
	}
	result.info("Server: %s", server.Addr())
}

func validateSessions(sessions config.Sessions, result *ValidationResult) {
	if sessions.MaxAge <= 0 {
		result.fail("Sessions max-age must be positive, got %v", sessions.MaxAge)
	}
	if sessions.CleanupInterval <= 0 {
		result.fail("Sessions cleanup-interval must be positive, got %v", sessions.CleanupInterval)
	}
	if sessions.MaxAge > 0 && sessions.CleanupInterval > sessions.MaxAge {
		result.fail("Sessions cleanup-interval %v exceeds max-age %v", sessions.CleanupInterval, sessions.MaxAge)
	}
}

// findProfiles returns the *.yml and *.yaml files in dir.
func findProfiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// main validates every profile in the directory, printing a concise report
// and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := findProfiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No profiles found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateProfile(file)
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All profiles are valid!")
	} else {
		fmt.Println("❌ Some profiles have errors")
		os.Exit(1)
	}
}
