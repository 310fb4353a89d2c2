package matrix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitrise-steplib/steps-golden-values-test/descriptor"
	"github.com/bitrise-steplib/steps-golden-values-test/template"
	"github.com/google/uuid"
)

// Variables every run can reference besides its product axes.
const (
	VarName      = "name"
	VarModel     = "model"
	VarBuild     = "build"
	VarNodes     = "nodes"
	VarGPUs      = "gpus"
	VarNRepeat   = "n_repeat"
	VarTimeLimit = "time_limit"
	VarAssetsDir = "assets_dir"
)

// Filter selects runs by their product values, empty fields match everything.
type Filter struct {
	TestCase    string
	Environment string
	Scope       string
	Platform    string
}

func (f Filter) matches(run ResolvedRun) bool {
	return matchesValue(f.TestCase, run.TestCase) &&
		matchesValue(f.Environment, run.Environment) &&
		matchesValue(f.Scope, run.Scope) &&
		matchesValue(f.Platform, run.Platform)
}

func matchesValue(selector, value string) bool {
	return selector == "" || selector == value
}

// Options ...
type Options struct {
	AssetsDir    string
	InvocationID uuid.UUID
	Filter       Filter
}

// ResolvedRun is one fully interpolated test run.
type ResolvedRun struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Build       string            `json:"build,omitempty"`
	Model       string            `json:"model,omitempty"`
	TestCase    string            `json:"test_case,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Scope       string            `json:"scope,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	Nodes       int               `json:"nodes"`
	GPUs        int               `json:"gpus"`
	NRepeat     int               `json:"n_repeat"`
	TimeLimit   int               `json:"time_limit,omitempty"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	ScriptSetup string            `json:"script_setup,omitempty"`
	Script      string            `json:"script"`
	Vars        map[string]string `json:"vars"`
}

type binding struct {
	name  string
	value string
}

// Expand cross-produces the product groups of d and renders one run per combination.
// Every combination has to render cleanly, the filter is applied afterwards.
func Expand(d descriptor.Descriptor, opts Options) ([]ResolvedRun, error) {
	verr := &descriptor.ValidationError{}

	var (
		all       []ResolvedRun
		nameIndex = map[string]int{}
	)
	for i, combination := range combinations(d.Products) {
		run, err := resolve(d.Spec, combination, opts)
		if err != nil {
			verr.Add("combination %d (%s): %s", i, describe(combination), err)
			continue
		}

		if previous, ok := nameIndex[run.Name]; ok {
			verr.Add("combination %d (%s): run name %s is already used by combination %d", i, describe(combination), run.Name, previous)
			continue
		}
		nameIndex[run.Name] = i

		all = append(all, run)
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var selected []ResolvedRun
	for _, run := range all {
		if opts.Filter.matches(run) {
			selected = append(selected, run)
		}
	}
	return selected, nil
}

func combinations(groups []descriptor.ProductGroup) [][]binding {
	var result [][]binding
	for _, group := range groups {
		own := crossProduct(group.Axes)
		if len(group.Products) == 0 {
			result = append(result, own...)
			continue
		}

		children := combinations(group.Products)
		for _, parent := range own {
			for _, child := range children {
				combination := make([]binding, 0, len(parent)+len(child))
				combination = append(combination, parent...)
				combination = append(combination, child...)
				result = append(result, combination)
			}
		}
	}
	return result
}

func crossProduct(axes []descriptor.Axis) [][]binding {
	result := [][]binding{{}}
	for _, axis := range axes {
		next := make([][]binding, 0, len(result)*len(axis.Values))
		for _, partial := range result {
			for _, value := range axis.Values {
				combination := make([]binding, 0, len(partial)+1)
				combination = append(combination, partial...)
				combination = append(combination, binding{name: axis.Name, value: value})
				next = append(next, combination)
			}
		}
		result = next
	}
	return result
}

func describe(combination []binding) string {
	parts := make([]string, 0, len(combination))
	for _, b := range combination {
		parts = append(parts, b.name+"="+b.value)
	}
	return strings.Join(parts, ", ")
}

func resolve(spec descriptor.TestSpec, combination []binding, opts Options) (ResolvedRun, error) {
	vars := map[string]string{
		VarModel:     spec.Model,
		VarNodes:     strconv.Itoa(spec.Nodes),
		VarGPUs:      strconv.Itoa(spec.GPUs),
		VarNRepeat:   strconv.Itoa(spec.NRepeat),
		VarTimeLimit: strconv.Itoa(spec.TimeLimit),
	}
	if spec.Platforms != "" {
		vars[descriptor.AxisPlatforms] = spec.Platforms
	}
	if opts.AssetsDir != "" {
		vars[VarAssetsDir] = opts.AssetsDir
	}
	for _, b := range combination {
		vars[b.name] = b.value
	}

	var renderErrs []string
	render := func(field, text string) string {
		rendered, err := template.Render(text, vars)
		if err != nil {
			renderErrs = append(renderErrs, fmt.Sprintf("%s: %s", field, err))
		}
		return rendered
	}

	name := render("spec.name", spec.Name)
	if len(renderErrs) > 0 {
		return ResolvedRun{}, errors.New(strings.Join(renderErrs, "; "))
	}
	vars[VarName] = name

	build := render("spec.build", spec.Build)
	vars[VarBuild] = build

	scriptSetup := render("spec.script_setup", spec.ScriptSetup)
	script := render("spec.script", spec.Script)

	nodes := intVar(vars, VarNodes, &renderErrs)
	gpus := intVar(vars, VarGPUs, &renderErrs)
	nRepeat := intVar(vars, VarNRepeat, &renderErrs)
	timeLimit := intVar(vars, VarTimeLimit, &renderErrs)

	if len(renderErrs) > 0 {
		return ResolvedRun{}, errors.New(strings.Join(renderErrs, "; "))
	}

	var artifacts map[string]string
	if len(spec.Artifacts) > 0 {
		artifacts = make(map[string]string, len(spec.Artifacts))
		for mountPath, source := range spec.Artifacts {
			artifacts[mountPath] = source
		}
	}

	return ResolvedRun{
		ID:          uuid.NewSHA1(opts.InvocationID, []byte(name)).String(),
		Name:        name,
		Build:       build,
		Model:       vars[VarModel],
		TestCase:    vars[descriptor.AxisTestCase],
		Environment: vars[descriptor.AxisEnvironment],
		Scope:       vars[descriptor.AxisScope],
		Platform:    vars[descriptor.AxisPlatforms],
		Nodes:       nodes,
		GPUs:        gpus,
		NRepeat:     nRepeat,
		TimeLimit:   timeLimit,
		Artifacts:   artifacts,
		ScriptSetup: scriptSetup,
		Script:      script,
		Vars:        vars,
	}, nil
}

func intVar(vars map[string]string, name string, errs *[]string) int {
	value, err := strconv.Atoi(vars[name])
	if err != nil || value < 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a non-negative integer, got %q", name, vars[name]))
		return 0
	}
	return value
}
