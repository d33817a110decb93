package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/lumenhq/lumen/internal/domain"
)

// progressEnabled reports whether stderr is an interactive terminal —
// the only condition under which a progress bar, rather than a plain
// log line, is worth drawing.
func progressEnabled() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

// resumePolicyForTTY returns PolicyPrompt when stderr is a terminal
// (so a partially downloaded file can ask the user), PolicyResumeAlways
// otherwise (scripted/piped invocations never block on stdin).
func resumePolicyForTTY() domain.ResumePolicy {
	if progressEnabled() {
		return domain.PolicyPrompt
	}
	return domain.PolicyResumeAlways
}

// askYesNo prompts on the terminal and reads a y/n answer from stdin.
// An empty answer means yes.
func askYesNo(question string) bool {
	fmt.Fprint(os.Stderr, question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}

// newPullProgress returns an OnProgress-compatible callback that draws one
// progressbar.ProgressBar per item, created on the item's first progress
// report and sized by the total reported then. Returns a no-op when
// progress is disabled.
func newPullProgress() func(item int, have, total int64) {
	if !progressEnabled() {
		return func(item int, have, total int64) {}
	}

	bars := map[int]*progressbar.ProgressBar{}
	return func(item int, have, total int64) {
		bar, ok := bars[item]
		if !ok {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription("downloading"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(65*time.Millisecond),
			)
			bars[item] = bar
		}
		_ = bar.Set64(have)
	}
}
