package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/bitrise/configs"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-golden-values-test/matrix"
	"github.com/bitrise-steplib/steps-golden-values-test/metrics"
	"github.com/bitrise-steplib/steps-golden-values-test/output/mocks"
	"github.com/bitrise-steplib/steps-golden-values-test/testaddon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const runName = "gpt_static_inference_tp1_pp1_583m_logitsmatch_dev_dgx_h100"

type testingMocks struct {
	envRepository     *mocks.Repository
	outputExporter    *mocks.OutputExporter
	testAddonExporter *mocks.TestAddonExporter
}

func Test_GivenSuccessfulTest_WhenExportingTestRunResults_ThenSetsEnvVariableToSuccess(t *testing.T) {
	// Given
	exporter, mocks := createSutAndMocks(t)

	// When
	exporter.ExportTestRunResult(false)

	// Then
	mocks.envRepository.AssertCalled(t, "Set", TestResultKey, "succeeded")
}

func Test_GivenFailedTest_WhenExportingTestRunResults_ThenSetsEnvVariableToFailure(t *testing.T) {
	// Given
	exporter, mocks := createSutAndMocks(t)

	// When
	exporter.ExportTestRunResult(true)

	// Then
	mocks.envRepository.AssertCalled(t, "Set", TestResultKey, "failed")
}

func Test_GivenResolvedRuns_WhenExporting_ThenWritesJSONAndSetsEnvVariable(t *testing.T) {
	// Given
	deployDir := t.TempDir()
	runs := []matrix.ResolvedRun{
		{ID: "1", Name: runName, Script: "bash run_ci_test.sh", NRepeat: 1},
		{ID: "2", Name: runName + "_cudagraphs", Script: "bash run_ci_test.sh", NRepeat: 1},
	}
	exporter, mocks := createSutAndMocks(t)

	// When
	err := exporter.ExportResolvedRuns(deployDir, runs)

	// Then
	require.NoError(t, err)

	pth := filepath.Join(deployDir, "resolved_runs.json")
	mocks.envRepository.AssertCalled(t, "Set", ResolvedRunsPathKey, pth)

	content, err := os.ReadFile(pth)
	require.NoError(t, err)

	var got []matrix.ResolvedRun
	require.NoError(t, json.Unmarshal(content, &got))
	assert.Equal(t, runs, got)
}

func Test_GivenRunLog_WhenExporting_ThenWritesItAndSetsEnvVariable(t *testing.T) {
	// Given
	deployDir := t.TempDir()
	exporter, mocks := createSutAndMocks(t)

	// When
	err := exporter.ExportRunLog(deployDir, "weird/name", []byte("run log"))

	// Then
	require.NoError(t, err)

	logPath := filepath.Join(deployDir, "weird-name.log")
	mocks.envRepository.AssertCalled(t, "Set", LogPathKey, logPath)
	assert.True(t, isPathExists(logPath))
}

func Test_GivenNoTestResultDir_WhenExportingOutputDir_ThenOnlyZipsIt(t *testing.T) {
	// Given
	deployDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "assets")
	exporter, mocks := createSutAndMocks(t)
	mocks.envRepository.On("Get", configs.BitrisePerStepTestResultDirEnvKey).Return("")
	mocks.outputExporter.On("ExportOutputFilesZip", OutputZipPathKey, []string{outputPath}, filepath.Join(deployDir, runName+"_output.zip")).Return(nil)

	// When
	err := exporter.ExportOutputDir(deployDir, matrix.ResolvedRun{Name: runName}, outputPath)

	// Then
	require.NoError(t, err)
	mocks.testAddonExporter.AssertNotCalled(t, "CopyAndSaveMetadata", mock.Anything)
}

func Test_GivenTestResultDir_WhenExportingOutputDir_ThenCopiesItForTheTestAddon(t *testing.T) {
	// Given
	deployDir := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "assets")
	addonDir := t.TempDir()
	run := matrix.ResolvedRun{Name: runName, Environment: "dev", Scope: "mr", Platform: "dgx_h100"}

	exporter, mocks := createSutAndMocks(t)
	mocks.envRepository.On("Get", configs.BitrisePerStepTestResultDirEnvKey).Return(addonDir)
	mocks.outputExporter.On("ExportOutputFilesZip", OutputZipPathKey, []string{outputPath}, mock.Anything).Return(nil)
	mocks.testAddonExporter.On("CopyAndSaveMetadata", testaddon.AddonCopy{
		SourceTestOutputDir: outputPath,
		TargetAddonPath:     addonDir,
		RunName:             runName,
		Environment:         "dev",
		Platform:            "dgx_h100",
		Scope:               "mr",
	}).Return(nil)

	// When
	err := exporter.ExportOutputDir(deployDir, run, outputPath)

	// Then
	require.NoError(t, err)
}

func Test_GivenRecordedMetrics_WhenExporting_ThenWritesTextfile(t *testing.T) {
	// Given
	deployDir := t.TempDir()
	recorder := metrics.NewRecorder()
	recorder.ObserveResult(runName, true)
	exporter, mocks := createSutAndMocks(t)

	// When
	err := exporter.ExportMetrics(deployDir, recorder.Gatherer())

	// Then
	require.NoError(t, err)

	pth := filepath.Join(deployDir, "ci_test_metrics.prom")
	mocks.envRepository.AssertCalled(t, "Set", MetricsPathKey, pth)

	content, err := os.ReadFile(pth)
	require.NoError(t, err)
	assert.Contains(t, string(content), `ci_test_run_success{run="`+runName+`"} 1`)
}

// Helpers

func createSutAndMocks(t *testing.T) (Exporter, testingMocks) {
	envRepository := mocks.NewRepository(t)
	envRepository.On("Set", mock.Anything, mock.Anything).Return(nil).Maybe()
	outputExporter := mocks.NewOutputExporter(t)
	testAddonExporter := mocks.NewTestAddonExporter(t)

	exporter := NewExporter(envRepository, log.NewLogger(), fileutil.NewFileManager(), outputExporter, testAddonExporter)

	return exporter, testingMocks{
		envRepository:     envRepository,
		outputExporter:    outputExporter,
		testAddonExporter: testAddonExporter,
	}
}

func isPathExists(path string) bool {
	isExist, _ := pathutil.NewPathChecker().IsPathExists(path)
	return isExist
}
