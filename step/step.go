package step

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-golden-values-test/descriptor"
	"github.com/bitrise-steplib/steps-golden-values-test/envcheck"
	"github.com/bitrise-steplib/steps-golden-values-test/gitrev"
	"github.com/bitrise-steplib/steps-golden-values-test/matrix"
	"github.com/bitrise-steplib/steps-golden-values-test/metrics"
	"github.com/bitrise-steplib/steps-golden-values-test/output"
	"github.com/bitrise-steplib/steps-golden-values-test/runargs"
	"github.com/bitrise-steplib/steps-golden-values-test/scriptrunner"
	"github.com/google/uuid"
)

// Env vars passed to every script on top of the step's environment.
const (
	RunIDEnvKey   = "CI_TEST_RUN_ID"
	RunNameEnvKey = "CI_TEST_RUN_NAME"
)

// ErrSetupNotReproducible is returned when a retried setup checks out a different commit.
var ErrSetupNotReproducible = errors.New("setup is not reproducible")

// Input ...
type Input struct {
	DescriptorPath string `env:"descriptor_path,required"`

	// Filters
	TestCase    string `env:"test_case"`
	Environment string `env:"environment"`
	Scope       string `env:"scope"`
	Platform    string `env:"platform"`

	AssetsDir string `env:"assets_dir,required"`
	WorkDir   string `env:"work_dir"`
	RepoDir   string `env:"repo_dir"`

	SetupRetries          int `env:"setup_retries,range[0..10]"`
	SetupRetryWaitSeconds int `env:"setup_retry_wait_seconds,range[0..600]"`

	StrictEnv  bool `env:"strict_env,opt[yes,no]"`
	DryRun     bool `env:"dry_run,opt[yes,no]"`
	VerboseLog bool `env:"verbose_log,opt[yes,no]"`

	DeployDir string `env:"BITRISE_DEPLOY_DIR"`
}

// Config ...
type Config struct {
	DescriptorPath string
	InvocationID   string

	Runs            []matrix.ResolvedRun
	OutputPaths     map[string]string
	UnusedArtifacts []string

	WorkDir string
	RepoDir string

	SetupRetries   uint
	SetupRetryWait time.Duration

	DryRun    bool
	DeployDir string
}

// PathModifier ...
type PathModifier interface {
	AbsPath(pth string) (string, error)
}

// PathChecker ...
type PathChecker interface {
	IsPathExists(pth string) (bool, error)
}

// GoldenValuesTestConfigParser ...
type GoldenValuesTestConfigParser struct {
	inputParser   stepconf.InputParser
	envRepository env.Repository
	logger        log.Logger
	fileOpener    descriptor.FileOpener
	pathModifier  PathModifier
}

// NewGoldenValuesTestConfigParser ...
func NewGoldenValuesTestConfigParser(inputParser stepconf.InputParser, envRepository env.Repository, logger log.Logger, fileOpener descriptor.FileOpener, pathModifier PathModifier) GoldenValuesTestConfigParser {
	return GoldenValuesTestConfigParser{
		inputParser:   inputParser,
		envRepository: envRepository,
		logger:        logger,
		fileOpener:    fileOpener,
		pathModifier:  pathModifier,
	}
}

// ProcessConfig ...
func (s GoldenValuesTestConfigParser) ProcessConfig() (Config, error) {
	var input Input
	if err := s.inputParser.Parse(&input); err != nil {
		return Config{}, err
	}

	stepconf.Print(input)
	s.logger.Println()

	s.logger.EnableDebugLog(input.VerboseLog)

	descriptorPath, err := s.pathModifier.AbsPath(input.DescriptorPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute descriptor path: %w", err)
	}

	d, err := descriptor.Load(s.fileOpener, descriptorPath)
	if err != nil {
		return Config{}, err
	}

	invocationID := uuid.New()
	filter := matrix.Filter{
		TestCase:    input.TestCase,
		Environment: input.Environment,
		Scope:       input.Scope,
		Platform:    input.Platform,
	}

	runs, err := matrix.Expand(d, matrix.Options{
		AssetsDir:    input.AssetsDir,
		InvocationID: invocationID,
		Filter:       filter,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to expand %s: %w", descriptorPath, err)
	}
	if len(runs) == 0 {
		return Config{}, fmt.Errorf("no test run of %s matches the filters (test_case: %q, environment: %q, scope: %q, platform: %q)",
			descriptorPath, filter.TestCase, filter.Environment, filter.Scope, filter.Platform)
	}

	outputPaths, err := validateArguments(runs)
	if err != nil {
		return Config{}, err
	}

	s.logger.Infof("Selected test runs")
	for _, run := range runs {
		s.logger.Printf("- %s (build: %s, nodes: %d, gpus: %d, n_repeat: %d)", run.Name, run.Build, run.Nodes, run.GPUs, run.NRepeat)
	}
	s.logger.Println()

	if missing := s.missingEnvs(runs); len(missing) > 0 {
		if input.StrictEnv {
			return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
		}
		s.logger.Warnf("Environment variables referenced by the scripts are not set: %s", strings.Join(missing, ", "))
	}

	unused := matrix.UnusedArtifacts(runs)
	for _, mountPath := range unused {
		s.logger.Warnf("Artifact mounted at %s is not referenced by any script", mountPath)
	}

	return Config{
		DescriptorPath: descriptorPath,
		InvocationID:   invocationID.String(),

		Runs:            runs,
		OutputPaths:     outputPaths,
		UnusedArtifacts: unused,

		WorkDir: input.WorkDir,
		RepoDir: input.RepoDir,

		SetupRetries:   uint(input.SetupRetries),
		SetupRetryWait: time.Duration(input.SetupRetryWaitSeconds) * time.Second,

		DryRun:    input.DryRun,
		DeployDir: input.DeployDir,
	}, nil
}

// validateArguments checks the run_ci_test.sh argument array of every run and collects their OUTPUT_PATH.
func validateArguments(runs []matrix.ResolvedRun) (map[string]string, error) {
	verr := &descriptor.ValidationError{}
	outputPaths := map[string]string{}

	for _, run := range runs {
		args, found, err := runargs.Parse(run.Script)
		if err != nil {
			verr.Add("%s: %s", run.Name, err)
			continue
		}
		if !found {
			continue
		}
		if err := args.Validate(); err != nil {
			verr.Add("%s: %s", run.Name, err)
			continue
		}

		if outputPath, ok := args.Get(runargs.OutputPath); ok {
			outputPaths[run.Name] = outputPath
		}
	}

	return outputPaths, verr.OrNil()
}

func (s GoldenValuesTestConfigParser) missingEnvs(runs []matrix.ResolvedRun) []string {
	lookup := func(key string) string {
		if key == RunIDEnvKey || key == RunNameEnvKey {
			return "provided"
		}
		return s.envRepository.Get(key)
	}

	missingSet := map[string]bool{}
	for _, run := range runs {
		for _, key := range envcheck.Missing(run.ScriptSetup+"\n"+run.Script, lookup) {
			missingSet[key] = true
		}
	}

	var missing []string
	for key := range missingSet {
		missing = append(missing, key)
	}
	sort.Strings(missing)

	return missing
}

// GoldenValuesTestRunner ...
type GoldenValuesTestRunner struct {
	logger         log.Logger
	installer      scriptrunner.DependencyInstaller
	scriptRunner   scriptrunner.Runner
	revReader      gitrev.Reader
	recorder       *metrics.Recorder
	outputExporter output.Exporter
	pathChecker    PathChecker
	utils          Utils
}

// NewGoldenValuesTestRunner ...
func NewGoldenValuesTestRunner(logger log.Logger, installer scriptrunner.DependencyInstaller, scriptRunner scriptrunner.Runner, revReader gitrev.Reader, recorder *metrics.Recorder, outputExporter output.Exporter, pathChecker PathChecker, utils Utils) GoldenValuesTestRunner {
	return GoldenValuesTestRunner{
		logger:         logger,
		installer:      installer,
		scriptRunner:   scriptRunner,
		revReader:      revReader,
		recorder:       recorder,
		outputExporter: outputExporter,
		pathChecker:    pathChecker,
		utils:          utils,
	}
}

// InstallDeps ...
func (s GoldenValuesTestRunner) InstallDeps() error {
	bashVersion, err := s.installer.CheckInstall()
	if err != nil {
		return fmt.Errorf("failed to check bash: %w", err)
	}
	if bashVersion != nil {
		s.logger.Printf("- bash version: %s", bashVersion.String())
	}
	s.logger.Println()

	return nil
}

// RunResult ...
type RunResult struct {
	Run        matrix.ResolvedRun
	OutputPath string

	Head          string
	SetupAttempts int
	SetupDuration time.Duration
	SetupOutput   []byte

	ScriptDuration time.Duration
	RawOutput      []byte
	ExitCode       int
	Passed         bool
}

// Log returns the setup output of the last attempt followed by the script output.
func (r RunResult) Log() []byte {
	if len(r.SetupOutput) == 0 {
		return r.RawOutput
	}

	combined := make([]byte, 0, len(r.SetupOutput)+len(r.RawOutput)+1)
	combined = append(combined, r.SetupOutput...)
	if len(r.RawOutput) > 0 {
		if combined[len(combined)-1] != '\n' {
			combined = append(combined, '\n')
		}
		combined = append(combined, r.RawOutput...)
	}
	return combined
}

// Result ...
type Result struct {
	DeployDir  string
	DryRun     bool
	Runs       []matrix.ResolvedRun
	RunResults []RunResult
}

// Run ...
func (s GoldenValuesTestRunner) Run(cfg Config) (Result, error) {
	result := Result{
		DeployDir: cfg.DeployDir,
		DryRun:    cfg.DryRun,
		Runs:      cfg.Runs,
	}

	for i, run := range cfg.Runs {
		s.logger.Println()
		s.logger.Infof("Test run %d/%d: %s", i+1, len(cfg.Runs), run.Name)

		if cfg.DryRun {
			s.printDryRun(run)
			continue
		}

		runResult, err := s.runOne(cfg, run)
		result.RunResults = append(result.RunResults, runResult)
		s.recorder.ObserveResult(run.Name, runResult.Passed)

		if err != nil {
			s.logger.Println()
			s.logger.Warnf("%s exit code: %d", run.Name, runResult.ExitCode)
			s.logger.Errorf("%s failed: %s", run.Name, err)
			return result, err
		}

		s.logger.Donef("%s succeeded", run.Name)
	}

	if cfg.DryRun {
		s.logger.Println()
		s.logger.Infof("Dry run, nothing was executed")
	}

	return result, nil
}

func (s GoldenValuesTestRunner) runOne(cfg Config, run matrix.ResolvedRun) (RunResult, error) {
	runResult := RunResult{
		Run:        run,
		OutputPath: cfg.OutputPaths[run.Name],
	}
	envs := []string{RunIDEnvKey + "=" + run.ID, RunNameEnvKey + "=" + run.Name}

	if strings.TrimSpace(run.ScriptSetup) != "" {
		if err := s.setup(cfg, run, envs, &runResult); err != nil {
			return runResult, err
		}
	}

	s.logger.Println()
	s.logger.TInfof("Running script")

	startTime := time.Now()
	out, err := s.scriptRunner.Run(scriptrunner.Params{
		Script:    run.Script,
		Envs:      envs,
		WorkDir:   cfg.WorkDir,
		TimeLimit: run.TimeLimit,
	})
	runResult.ScriptDuration = time.Since(startTime)
	runResult.RawOutput = out.RawOut
	runResult.ExitCode = out.ExitCode
	s.recorder.ObservePhase(run.Name, metrics.PhaseRun, runResult.ScriptDuration, 1)

	s.utils.PrintLastLinesOfScriptLog(string(out.RawOut), err == nil)

	if err != nil {
		return runResult, fmt.Errorf("script failed: %w", err)
	}

	runResult.Passed = true

	return runResult, nil
}

// setup runs the setup script, retrying it on failure.
// A retried setup has to check out the same commit as the attempts before it.
func (s GoldenValuesTestRunner) setup(cfg Config, run matrix.ResolvedRun, envs []string, runResult *RunResult) error {
	s.logger.Println()
	s.logger.TInfof("Running setup script")

	var heads []string
	startTime := time.Now()

	err := retry.Times(cfg.SetupRetries).Wait(cfg.SetupRetryWait).Try(func(attempt uint) error {
		runResult.SetupAttempts++
		if attempt > 0 {
			s.logger.Println()
			s.logger.Warnf("Retrying setup script (attempt %d/%d)", attempt+1, cfg.SetupRetries+1)
		}

		out, err := s.scriptRunner.Run(scriptrunner.Params{
			Script:  run.ScriptSetup,
			Envs:    envs,
			WorkDir: cfg.WorkDir,
		})
		runResult.SetupOutput = out.RawOut
		runResult.ExitCode = out.ExitCode

		if head := s.readHead(cfg.RepoDir); head != "" {
			heads = append(heads, head)
		}

		if err != nil {
			s.logger.Warnf("Setup attempt %d failed: %s", attempt+1, err)
		}
		return err
	})

	runResult.SetupDuration = time.Since(startTime)
	s.recorder.ObservePhase(run.Name, metrics.PhaseSetup, runResult.SetupDuration, runResult.SetupAttempts)

	if err != nil {
		s.utils.PrintLastLinesOfScriptLog(string(runResult.SetupOutput), false)
		return fmt.Errorf("setup failed after %d attempt(s): %w", runResult.SetupAttempts, err)
	}

	if len(heads) > 0 {
		runResult.Head = heads[len(heads)-1]
		s.logger.Printf("Checked out commit: %s", runResult.Head)

		for _, head := range heads {
			if head != runResult.Head {
				return fmt.Errorf("%w: %s moved from %s to %s between attempts", ErrSetupNotReproducible, cfg.RepoDir, head, runResult.Head)
			}
		}
	}

	return nil
}

func (s GoldenValuesTestRunner) readHead(repoDir string) string {
	if repoDir == "" {
		return ""
	}

	head, err := s.revReader.Head(repoDir)
	if err != nil {
		s.logger.Debugf("Failed to read HEAD: %s", err)
		return ""
	}

	return head
}

func (s GoldenValuesTestRunner) printDryRun(run matrix.ResolvedRun) {
	s.logger.Printf("id: %s", run.ID)
	s.logger.Printf("build: %s", run.Build)
	s.logger.Printf("nodes: %d, gpus: %d, n_repeat: %d, time_limit: %d", run.Nodes, run.GPUs, run.NRepeat, run.TimeLimit)

	var mountPaths []string
	for mountPath := range run.Artifacts {
		mountPaths = append(mountPaths, mountPath)
	}
	sort.Strings(mountPaths)
	for _, mountPath := range mountPaths {
		s.logger.Printf("artifact: %s <- %s", mountPath, run.Artifacts[mountPath])
	}

	if run.ScriptSetup != "" {
		s.logger.Printf("script_setup:\n%s", run.ScriptSetup)
	}
	s.logger.Printf("script:\n%s", run.Script)
}

// Export ...
func (s GoldenValuesTestRunner) Export(result Result, testFailed bool) error {
	if result.DryRun {
		s.logger.Infof("Dry run, %s is not exported", output.TestResultKey)
	} else {
		s.outputExporter.ExportTestRunResult(testFailed)
	}

	if result.DeployDir == "" {
		s.logger.Warnf("BITRISE_DEPLOY_DIR is not set, skipping artifact export")
		return nil
	}

	if err := s.outputExporter.ExportResolvedRuns(result.DeployDir, result.Runs); err != nil {
		return err
	}

	for _, runResult := range result.RunResults {
		if runLog := runResult.Log(); len(runLog) > 0 {
			if err := s.outputExporter.ExportRunLog(result.DeployDir, runResult.Run.Name, runLog); err != nil {
				s.logger.Warnf("Failed to export log of %s: %s", runResult.Run.Name, err)
			}
		}

		if runResult.OutputPath == "" {
			continue
		}
		if exists, err := s.pathChecker.IsPathExists(runResult.OutputPath); err != nil || !exists {
			s.logger.Debugf("Output of %s not found at %s", runResult.Run.Name, runResult.OutputPath)
			continue
		}
		if err := s.outputExporter.ExportOutputDir(result.DeployDir, runResult.Run, runResult.OutputPath); err != nil {
			s.logger.Warnf("Failed to export output of %s: %s", runResult.Run.Name, err)
		}
	}

	if len(result.RunResults) > 0 {
		if err := s.outputExporter.ExportMetrics(result.DeployDir, s.recorder.Gatherer()); err != nil {
			s.logger.Warnf("Failed to export metrics: %s", err)
		}
	}

	return nil
}
