package main

import (
	"os"

	"github.com/bitrise-io/go-steputils/v2/export"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-golden-values-test/gitrev"
	"github.com/bitrise-steplib/steps-golden-values-test/metrics"
	"github.com/bitrise-steplib/steps-golden-values-test/output"
	"github.com/bitrise-steplib/steps-golden-values-test/scriptrunner"
	"github.com/bitrise-steplib/steps-golden-values-test/step"
	"github.com/bitrise-steplib/steps-golden-values-test/testaddon"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewLogger()
	envRepository := env.NewRepository()

	configParser := createConfigParser(logger, envRepository)
	config, err := configParser.ProcessConfig()
	if err != nil {
		logger.Errorf("Process config: %s", err)
		return 1
	}

	goldenValuesTestRunner := createStep(logger, envRepository)
	if err := goldenValuesTestRunner.InstallDeps(); err != nil {
		logger.Errorf("Install dependencies: %s", err)
		return 1
	}

	res, runErr := goldenValuesTestRunner.Run(config)
	exportErr := goldenValuesTestRunner.Export(res, runErr != nil)

	if runErr != nil {
		logger.Errorf("Run: %s", runErr)
		return 1
	}
	if exportErr != nil {
		logger.Errorf("Export outputs: %s", exportErr)
		return 1
	}

	return 0
}

func createConfigParser(logger log.Logger, envRepository env.Repository) step.GoldenValuesTestConfigParser {
	inputParser := stepconf.NewInputParser(envRepository)
	fileManager := fileutil.NewFileManager()
	pathModifier := pathutil.NewPathModifier()

	return step.NewGoldenValuesTestConfigParser(inputParser, envRepository, logger, fileManager, pathModifier)
}

func createStep(logger log.Logger, envRepository env.Repository) step.GoldenValuesTestRunner {
	commandFactory := command.NewFactory(envRepository)
	fileManager := fileutil.NewFileManager()
	pathChecker := pathutil.NewPathChecker()

	bashRunner := scriptrunner.NewBashRunner(logger, commandFactory)
	revReader := gitrev.NewReader(commandFactory)
	recorder := metrics.NewRecorder()

	outputFilesExporter := export.NewExporter(commandFactory, fileManager)
	testAddonExporter := testaddon.NewExporter(logger, commandFactory, fileManager)
	outputExporter := output.NewExporter(envRepository, logger, fileManager, &outputFilesExporter, testAddonExporter)

	utils := step.NewUtils(logger)

	return step.NewGoldenValuesTestRunner(logger, bashRunner, bashRunner, revReader, recorder, outputExporter, pathChecker, utils)
}
