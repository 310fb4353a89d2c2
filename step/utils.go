package step

import (
	"github.com/bitrise-io/go-utils/colorstring"
	"github.com/bitrise-io/go-utils/stringutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-golden-values-test/output"
)

const lastLinesOfLog = 20

// Utils ...
type Utils struct {
	logger log.Logger
}

// NewUtils ...
func NewUtils(logger log.Logger) Utils {
	return Utils{logger: logger}
}

// PrintLastLinesOfScriptLog ...
func (utils Utils) PrintLastLinesOfScriptLog(rawOutput string, isRunSuccess bool) {
	if rawOutput == "" {
		return
	}

	const lastLines = "\nLast lines of the script log:"
	if !isRunSuccess {
		utils.logger.Errorf(lastLines)
	} else {
		utils.logger.Infof(lastLines)
	}

	utils.logger.Printf("%s", stringutil.LastNLines(rawOutput, lastLinesOfLog))

	if !isRunSuccess {
		utils.logger.Warnf("If you can't find the reason of the error in the log, please check the <run name>.log.")
	}

	utils.logger.Infof("%s", colorstring.Magenta(`
The log file is stored in $BITRISE_DEPLOY_DIR, and the full path of the last one
is available in the $` + output.LogPathKey + ` environment variable.`))
}
