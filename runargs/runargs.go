package runargs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Keys of the positional argument array passed to run_ci_test.sh, in the order it expects them.
const (
	CheckpointLoadPath    = "CHECKPOINT_LOAD_PATH"
	CheckpointSavePath    = "CHECKPOINT_SAVE_PATH"
	DataPath              = "DATA_PATH"
	DataCachePath         = "DATA_CACHE_PATH"
	TrainingScriptPath    = "TRAINING_SCRIPT_PATH"
	TrainingParamsPath    = "TRAINING_PARAMS_PATH"
	GoldenValuesPath      = "GOLDEN_VALUES_PATH"
	OutputPath            = "OUTPUT_PATH"
	TensorboardPath       = "TENSORBOARD_PATH"
	NRepeat               = "N_REPEAT"
	EnableLightweightMode = "ENABLE_LIGHTWEIGHT_MODE"
	RecordCheckpoints     = "RECORD_CHECKPOINTS"
)

// ContractKeys ...
var ContractKeys = []string{
	CheckpointLoadPath,
	CheckpointSavePath,
	DataPath,
	DataCachePath,
	TrainingScriptPath,
	TrainingParamsPath,
	GoldenValuesPath,
	OutputPath,
	TensorboardPath,
	NRepeat,
	EnableLightweightMode,
	RecordCheckpoints,
}

var argumentsArrayPattern = regexp.MustCompile(`(?ms)^\s*ARGUMENTS=\((.*?)^\s*\)`)

// Argument is one KEY=VALUE entry of the array.
type Argument struct {
	Key   string
	Value string
}

// Arguments is the parsed argument array, in script order.
type Arguments []Argument

// Get returns the value of key.
func (a Arguments) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Missing lists the contract keys the array does not set.
func (a Arguments) Missing() []string {
	var missing []string
	for _, key := range ContractKeys {
		if _, ok := a.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Validate ...
func (a Arguments) Validate() error {
	if missing := a.Missing(); len(missing) > 0 {
		return fmt.Errorf("run_ci_test.sh arguments missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Parse extracts the ARGUMENTS=( ... ) array of a rendered run script.
// The returned bool is false when the script declares no such array.
func Parse(script string) (Arguments, bool, error) {
	match := argumentsArrayPattern.FindStringSubmatch(script)
	if match == nil {
		return nil, false, nil
	}

	words, err := shellquote.Split(stripComments(match[1]))
	if err != nil {
		return nil, true, fmt.Errorf("failed to split ARGUMENTS entries: %w", err)
	}

	args := make(Arguments, 0, len(words))
	for _, word := range words {
		key, value, ok := strings.Cut(word, "=")
		if !ok || key == "" {
			return nil, true, fmt.Errorf("ARGUMENTS entry %q is not KEY=VALUE", word)
		}
		args = append(args, Argument{Key: key, Value: value})
	}

	return args, true, nil
}

func stripComments(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
