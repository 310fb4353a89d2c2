package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TypeBasic is the only test type the step knows how to expand.
const TypeBasic = "basic"

// Default values for the numeric spec fields left out of a descriptor.
const (
	DefaultNodes   = 1
	DefaultGPUs    = 1
	DefaultNRepeat = 1
)

// Descriptor is a test case document: one test template plus the products it is expanded over.
type Descriptor struct {
	Type          string         `yaml:"type" json:"type"`
	FormatVersion string         `yaml:"format_version" json:"format_version"`
	Maintainers   []string       `yaml:"maintainers,omitempty" json:"maintainers,omitempty"`
	Loggers       []string       `yaml:"loggers,omitempty" json:"loggers,omitempty"`
	Spec          TestSpec       `yaml:"spec" json:"spec"`
	Products      []ProductGroup `yaml:"products" json:"products"`
}

// TestSpec is the template every resolved run is rendered from.
type TestSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Model       string            `yaml:"model" json:"model"`
	Build       string            `yaml:"build" json:"build"`
	Nodes       int               `yaml:"nodes" json:"nodes"`
	GPUs        int               `yaml:"gpus" json:"gpus"`
	NRepeat     int               `yaml:"n_repeat" json:"n_repeat"`
	TimeLimit   int               `yaml:"time_limit,omitempty" json:"time_limit,omitempty"`
	Platforms   string            `yaml:"platforms" json:"platforms"`
	Artifacts   map[string]string `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	ScriptSetup string            `yaml:"script_setup,omitempty" json:"script_setup,omitempty"`
	Script      string            `yaml:"script" json:"script"`
}

// FileOpener ...
type FileOpener interface {
	Open(path string) (*os.File, error)
}

// Load reads and parses the descriptor at pth.
func Load(opener FileOpener, pth string) (Descriptor, error) {
	f, err := opener.Open(pth)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to open descriptor (%s): %w", pth, err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read descriptor (%s): %w", pth, err)
	}

	d, err := Parse(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid descriptor (%s): %w", pth, err)
	}
	return d, nil
}

// Parse decodes a descriptor document, fills the defaults and validates it.
func Parse(data []byte) (Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return Descriptor{}, errors.New("descriptor is empty")
		}
		return Descriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}

	d.applyDefaults()

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (d *Descriptor) applyDefaults() {
	if d.Spec.Nodes == 0 {
		d.Spec.Nodes = DefaultNodes
	}
	if d.Spec.GPUs == 0 {
		d.Spec.GPUs = DefaultGPUs
	}
	if d.Spec.NRepeat == 0 {
		d.Spec.NRepeat = DefaultNRepeat
	}
}
