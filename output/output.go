package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitrise-io/bitrise/configs"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-golden-values-test/matrix"
	"github.com/bitrise-steplib/steps-golden-values-test/testaddon"
	"github.com/prometheus/client_golang/prometheus"
)

// Exported env vars
const (
	TestResultKey       = "CI_TEST_RESULT"
	ResolvedRunsPathKey = "CI_TEST_RESOLVED_RUNS_PATH"
	LogPathKey          = "CI_TEST_LOG_PATH"
	OutputZipPathKey    = "CI_TEST_OUTPUT_ZIP_PATH"
	MetricsPathKey      = "CI_TEST_METRICS_PATH"
)

const (
	resolvedRunsFileName = "resolved_runs.json"
	metricsFileName      = "ci_test_metrics.prom"
)

// OutputExporter is the part of go-steputils' export.Exporter used here.
type OutputExporter interface {
	ExportOutputFilesZip(key string, sourcePaths []string, zipPath string) error
}

// FileWriter ...
type FileWriter interface {
	Write(path string, value string, perm os.FileMode) error
}

// Exporter ...
type Exporter interface {
	ExportTestRunResult(failed bool)
	ExportResolvedRuns(deployDir string, runs []matrix.ResolvedRun) error
	ExportRunLog(deployDir, runName string, rawOutput []byte) error
	ExportOutputDir(deployDir string, run matrix.ResolvedRun, outputPath string) error
	ExportMetrics(deployDir string, gatherer prometheus.Gatherer) error
}

type exporter struct {
	envRepository     env.Repository
	logger            log.Logger
	fileWriter        FileWriter
	outputExporter    OutputExporter
	testAddonExporter testaddon.Exporter
}

// NewExporter ...
func NewExporter(envRepository env.Repository, logger log.Logger, fileWriter FileWriter, outputExporter OutputExporter, testAddonExporter testaddon.Exporter) Exporter {
	return &exporter{
		envRepository:     envRepository,
		logger:            logger,
		fileWriter:        fileWriter,
		outputExporter:    outputExporter,
		testAddonExporter: testAddonExporter,
	}
}

func (e exporter) ExportTestRunResult(failed bool) {
	status := "succeeded"
	if failed {
		status = "failed"
	}
	e.set(TestResultKey, status)
}

func (e exporter) ExportResolvedRuns(deployDir string, runs []matrix.ResolvedRun) error {
	content, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode resolved runs: %w", err)
	}

	pth := filepath.Join(deployDir, resolvedRunsFileName)
	if err := e.fileWriter.Write(pth, string(content), 0644); err != nil {
		return fmt.Errorf("failed to write resolved runs to %s: %w", pth, err)
	}

	e.set(ResolvedRunsPathKey, pth)

	return nil
}

func (e exporter) ExportRunLog(deployDir, runName string, rawOutput []byte) error {
	pth := filepath.Join(deployDir, testaddon.ReplaceUnsupportedFilenameCharacters(runName)+".log")
	if err := e.fileWriter.Write(pth, string(rawOutput), 0644); err != nil {
		return fmt.Errorf("failed to write %s log to %s: %w", runName, pth, err)
	}

	e.set(LogPathKey, pth)

	return nil
}

func (e exporter) ExportOutputDir(deployDir string, run matrix.ResolvedRun, outputPath string) error {
	zipPath := filepath.Join(deployDir, testaddon.ReplaceUnsupportedFilenameCharacters(run.Name)+"_output.zip")
	if err := e.outputExporter.ExportOutputFilesZip(OutputZipPathKey, []string{outputPath}, zipPath); err != nil {
		return fmt.Errorf("failed to export %s: %w", OutputZipPathKey, err)
	}

	if addonResultPath := e.envRepository.Get(configs.BitrisePerStepTestResultDirEnvKey); len(addonResultPath) > 0 {
		e.logger.Println()
		e.logger.Infof("Exporting test results of %s", run.Name)

		if err := e.testAddonExporter.CopyAndSaveMetadata(testaddon.AddonCopy{
			SourceTestOutputDir: outputPath,
			TargetAddonPath:     addonResultPath,
			RunName:             run.Name,
			Environment:         run.Environment,
			Platform:            run.Platform,
			Scope:               run.Scope,
		}); err != nil {
			e.logger.Warnf("Failed to export test results: %s", err)
		}
	}

	return nil
}

func (e exporter) ExportMetrics(deployDir string, gatherer prometheus.Gatherer) error {
	if err := os.MkdirAll(deployDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", deployDir, err)
	}

	pth := filepath.Join(deployDir, metricsFileName)
	if err := prometheus.WriteToTextfile(pth, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", pth, err)
	}

	e.set(MetricsPathKey, pth)

	return nil
}

func (e exporter) set(key, value string) {
	if err := e.envRepository.Set(key, value); err != nil {
		e.logger.Warnf("Failed to export: %s: %s", key, err)
	}
}
