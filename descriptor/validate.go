package descriptor

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

// SupportedFormatVersions is the format_version range this step can expand.
const SupportedFormatVersions = ">= 1, < 2"

// reservedAxes are rendered from spec.name and spec.build, an axis may not take their place.
var reservedAxes = map[string]bool{"name": true, "build": true}

// ValidationError aggregates descriptor validation issues.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "descriptor validation failed"
	}
	return "descriptor validation failed: " + strings.Join(e.Issues, "; ")
}

// Add records an issue, blank issues are ignored.
func (e *ValidationError) Add(format string, args ...interface{}) {
	issue := fmt.Sprintf(format, args...)
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Validate checks the structural rules a descriptor has to satisfy before expansion.
func (d Descriptor) Validate() error {
	verr := &ValidationError{}

	if d.Type != TypeBasic {
		verr.Add("type must be %q, got %q", TypeBasic, d.Type)
	}
	validateFormatVersion(verr, d.FormatVersion)
	validateSpec(verr, d.Spec)

	if len(d.Products) == 0 {
		verr.Add("products must be non-empty")
	}
	for i, group := range d.Products {
		validateProductGroup(verr, fmt.Sprintf("products[%d]", i), group, map[string]bool{})
	}

	return verr.OrNil()
}

func validateFormatVersion(verr *ValidationError, formatVersion string) {
	if strings.TrimSpace(formatVersion) == "" {
		verr.Add("format_version is required")
		return
	}

	ver, err := version.NewVersion(formatVersion)
	if err != nil {
		verr.Add("format_version (%s) is not a valid version: %s", formatVersion, err)
		return
	}

	constraints, err := version.NewConstraint(SupportedFormatVersions)
	if err != nil {
		verr.Add("internal error, invalid format version constraint: %s", err)
		return
	}
	if !constraints.Check(ver) {
		verr.Add("format_version %s is not supported, supported: %s", formatVersion, SupportedFormatVersions)
	}
}

func validateSpec(verr *ValidationError, spec TestSpec) {
	if strings.TrimSpace(spec.Name) == "" {
		verr.Add("spec.name is required")
	}
	if strings.TrimSpace(spec.Script) == "" {
		verr.Add("spec.script is required")
	}
	if spec.Nodes < 1 {
		verr.Add("spec.nodes must be at least 1, got %d", spec.Nodes)
	}
	if spec.GPUs < 1 {
		verr.Add("spec.gpus must be at least 1, got %d", spec.GPUs)
	}
	if spec.NRepeat < 1 {
		verr.Add("spec.n_repeat must be at least 1, got %d", spec.NRepeat)
	}
	if spec.TimeLimit < 0 {
		verr.Add("spec.time_limit must not be negative, got %d", spec.TimeLimit)
	}

	validateArtifacts(verr, spec.Artifacts)
}

func validateArtifacts(verr *ValidationError, artifacts map[string]string) {
	mountPaths := make([]string, 0, len(artifacts))
	for mountPath := range artifacts {
		mountPaths = append(mountPaths, mountPath)
	}
	sort.Strings(mountPaths)

	seen := make(map[string]string, len(mountPaths))
	for _, mountPath := range mountPaths {
		if !path.IsAbs(mountPath) {
			verr.Add("spec.artifacts: mount path %q must be absolute", mountPath)
			continue
		}

		cleaned := path.Clean(mountPath)
		if other, ok := seen[cleaned]; ok {
			verr.Add("spec.artifacts: mount paths %q and %q point to the same location", other, mountPath)
			continue
		}
		seen[cleaned] = mountPath

		if strings.TrimSpace(artifacts[mountPath]) == "" {
			verr.Add("spec.artifacts: source of %q is empty", mountPath)
		}
	}
}

func validateProductGroup(verr *ValidationError, location string, group ProductGroup, inherited map[string]bool) {
	if len(group.Axes) == 0 && len(group.Products) == 0 {
		verr.Add("%s: product group is empty", location)
		return
	}

	declared := make(map[string]bool, len(inherited)+len(group.Axes))
	for name := range inherited {
		declared[name] = true
	}

	for _, axis := range group.Axes {
		if axis.Name == "" {
			verr.Add("%s: axis name is empty", location)
			continue
		}
		if reservedAxes[axis.Name] {
			verr.Add("%s: axis %s is reserved", location, axis.Name)
		}
		if declared[axis.Name] {
			verr.Add("%s: axis %s is already declared", location, axis.Name)
		}
		declared[axis.Name] = true

		if len(axis.Values) == 0 {
			verr.Add("%s.%s: must have at least one value", location, axis.Name)
		}
		for j, value := range axis.Values {
			if strings.TrimSpace(value) == "" {
				verr.Add("%s.%s[%d]: value is empty", location, axis.Name, j)
			}
		}
	}

	for i, child := range group.Products {
		validateProductGroup(verr, fmt.Sprintf("%s.products[%d]", location, i), child, declared)
	}
}
