package testaddon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/log"
)

const metadataFileName = "test-info.json"

var unsupportedFilenameCharacters = regexp.MustCompile(`[/:\\*?"<>|\s]`)

// FileWriter ...
type FileWriter interface {
	Write(path string, value string, perm os.FileMode) error
}

// Exporter ...
type Exporter interface {
	CopyAndSaveMetadata(info AddonCopy) error
}

// AddonCopy describes one run's output directory and where the test addon expects it.
type AddonCopy struct {
	SourceTestOutputDir string
	TargetAddonPath     string
	RunName             string
	Environment         string
	Platform            string
	Scope               string
}

type metadata struct {
	TestName    string `json:"test-name"`
	Environment string `json:"environment,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

type exporter struct {
	logger         log.Logger
	commandFactory command.Factory
	fileWriter     FileWriter
}

// NewExporter ...
func NewExporter(logger log.Logger, commandFactory command.Factory, fileWriter FileWriter) Exporter {
	return &exporter{
		logger:         logger,
		commandFactory: commandFactory,
		fileWriter:     fileWriter,
	}
}

func (e exporter) CopyAndSaveMetadata(info AddonCopy) error {
	bundleName := ReplaceUnsupportedFilenameCharacters(info.RunName)
	addonPerStepOutputDir := filepath.Join(info.TargetAddonPath, bundleName)

	if err := e.copyDirectory(info.SourceTestOutputDir, addonPerStepOutputDir); err != nil {
		return err
	}

	return e.saveMetadata(addonPerStepOutputDir, metadata{
		TestName:    bundleName,
		Environment: info.Environment,
		Platform:    info.Platform,
		Scope:       info.Scope,
	})
}

// ReplaceUnsupportedFilenameCharacters replaces path separators and shell special characters with '-'.
func ReplaceUnsupportedFilenameCharacters(s string) string {
	return unsupportedFilenameCharacters.ReplaceAllString(s, "-")
}

func (e exporter) copyDirectory(sourceDir string, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory (%s): %w", targetDir, err)
	}

	// the trailing `/` copies the directory itself, not only its content
	cmd := e.commandFactory.Create("cp", []string{"-a", sourceDir, targetDir + "/"}, nil)
	e.logger.Donef("$ %s", cmd.PrintableCommandArgs())
	if out, err := cmd.RunAndReturnTrimmedCombinedOutput(); err != nil {
		return fmt.Errorf("copy failed: %w, output: %s", err, out)
	}

	return nil
}

func (e exporter) saveMetadata(outputDir string, m metadata) error {
	bytes, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("could not encode metadata: %w", err)
	}
	if err := e.fileWriter.Write(filepath.Join(outputDir, metadataFileName), string(bytes), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
