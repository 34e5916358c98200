// mtest runs the analyzer over annotated fixture files and compares the
// diagnostics with the "// [ERROR]" annotations and with golden files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/driver"
	"github.com/xplshn/mcc/pkg/fixture"
)

// Golden is the recorded outcome of analyzing one file.
type Golden struct {
	Diagnostics []diag.Record `json:"diagnostics"`
	IR          string        `json:"ir,omitempty"`
}

type FileTestResult struct {
	File     string        `json:"file"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
	Golden   *Golden       `json:"result,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	testFiles      = flag.String("test-files", "testdata/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	configFile     = flag.String("config", "", "YAML settings applied to every file.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Str("tool", "mtest").Logger()

	cfg := config.NewConfig()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			logger.Fatal().Err(err).Msg("loading config")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *generateGolden != "" {
		if err := handleGenerateGolden(*generateGolden, cfg, logger); err != nil {
			logger.Fatal().Err(err).Str("file", *generateGolden).Msg("could not generate golden file")
		}
		return
	}

	if handleRunTestSuite(ctx, cfg, logger) {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// record analyzes file and captures what a golden file stores. File names
// are kept relative so goldens do not depend on the checkout location.
func record(file string, cfg *config.Config, logger zerolog.Logger) (*driver.Unit, *Golden, error) {
	u, err := driver.ReadFile(file, 0, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	g := &Golden{Diagnostics: make([]diag.Record, 0, len(u.Diagnostics))}
	for _, d := range u.Diagnostics {
		g.Diagnostics = append(g.Diagnostics, d.Record(filepath.Base(file)))
	}
	if !u.HasErrors() {
		prog, err := u.Lower()
		if err != nil {
			return u, nil, err
		}
		if g.IR, err = codegen.NewQBEBackend().GenerateIR(prog, u.Config); err != nil {
			return u, nil, err
		}
	}
	return u, g, nil
}

func handleGenerateGolden(sourceFile string, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Str("file", sourceFile).Msg("generating golden file")

	_, golden, err := record(sourceFile, cfg, logger)
	if err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data to JSON: %w", err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", goldenFileName, err)
	}

	logger.Info().Str("golden", goldenFileName).Msg("golden file created")
	return nil
}

// handleRunTestSuite reports whether any file failed.
func handleRunTestSuite(ctx context.Context, cfg *config.Config, logger zerolog.Logger) bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid glob pattern(s)")
	}
	if len(files) == 0 {
		logger.Warn().Str("pattern", *testFiles).Msg("no test files found matching the pattern(s)")
		return false
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	if *jobs < 1 {
		*jobs = 1
	}
	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				if ctx.Err() != nil {
					resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Test run cancelled"}
					continue
				}
				resultsChan <- testFile(file, cfg, logger)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults, logger)
	if ctx.Err() != nil {
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		return true
	}
	return hasFailures(resultsMap)
}

func testFile(file string, cfg *config.Config, logger zerolog.Logger) *FileTestResult {
	start := time.Now()
	u, got, err := record(file, cfg, logger)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	result := &FileTestResult{File: file, Golden: got, Duration: time.Since(start)}

	var diffs strings.Builder
	for _, m := range fixture.Check(string(u.Record.Content), 0, u.Diagnostics) {
		diffs.WriteString(m.String())
		diffs.WriteString("\n")
	}
	annotationsOK := diffs.Len() == 0

	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	switch {
	case err == nil:
		var want Golden
		if err := json.Unmarshal(goldenData, &want); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
		}
		if d := cmp.Diff(want, *got); d != "" {
			fmt.Fprintf(&diffs, "Golden mismatch (-want +got):\n%s", d)
		}
	case os.IsNotExist(err):
		logger.Debug().Str("file", file).Msg("no golden file, checking annotations only")
	default:
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}

	if diffs.Len() > 0 {
		result.Status = "FAIL"
		result.Diff = diffs.String()
		if !annotationsOK {
			result.Message = "Diagnostics do not match the annotations"
		} else {
			result.Message = "Diagnostics do not match the golden file"
		}
		return result
	}
	result.Status = "PASS"
	result.Message = fmt.Sprintf("%d diagnostic(s) as expected", len(got.Diagnostics))
	return result
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
			if *verbose {
				fmt.Printf("  [%s]\n", formatDuration(result.Duration))
			}
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		total += result.Duration
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if *verbose && passed+failed > 0 {
		fmt.Printf("Analysis took %s on average.\n", formatDuration(total/time.Duration(passed+failed)))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult, logger zerolog.Logger) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal results to JSON")
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", *jsonDir).Msg("failed to create directory")
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		logger.Error().Err(err).Str("output", outputFile).Msg("failed to write JSON report")
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
