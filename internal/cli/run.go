package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/metrics"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run HANDLE [PROMPT]",
	Short: "Run a model and start an interactive chat",
	Long:  `Run resolves, downloads, installs, starts, and loads HANDLE, then chats with it. If PROMPT is given, generates a single response and exits.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	handle := domain.ParseHandle(args[0])
	var prompt string
	if len(args) > 1 {
		prompt = strings.Join(args[1:], " ")
	}

	d, err := newDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	d.Orchestrator.ResumePolicy = resumePolicyForTTY()
	d.Orchestrator.OnProgress = newPullProgress()
	d.Downloader.Prompt = askYesNo

	hostport := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	result, err := d.Orchestrator.Run(cmd.Context(), handle, hostport)
	if err != nil {
		return err
	}
	defer result.Engine.Close()

	if prompt != "" {
		return generateAndPrint(cmd, result.Descriptor.ID, prompt, result.Engine.Capability())
	}
	return interactiveChat(cmd, result.Descriptor.ID, result.Engine.Capability())
}

func generateAndPrint(cmd *cobra.Command, modelID, prompt string, cap domain.CapabilityObject) error {
	start := time.Now()
	sink := make(chan domain.Token)
	errCh := make(chan error, 1)
	go func() {
		errCh <- cap.Generate(cmd.Context(), domain.GenerateRequest{ModelID: modelID, Prompt: prompt}, sink)
	}()

	first := true
	for tok := range sink {
		if first {
			metrics.InferenceLatency.WithLabelValues(modelID, "first_token").Observe(time.Since(start).Seconds())
			first = false
		}
		metrics.InferenceTokens.WithLabelValues(modelID).Inc()
		fmt.Print(tok.Text)
	}
	metrics.InferenceLatency.WithLabelValues(modelID, "total").Observe(time.Since(start).Seconds())
	fmt.Println()
	return <-errCh
}

func interactiveChat(cmd *cobra.Command, modelID string, cap domain.CapabilityObject) error {
	fmt.Printf(">>> chatting with %s (type /bye to exit)\n", modelID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "/bye" || input == "/exit" || input == "/quit" {
			return nil
		}
		if input == "" {
			continue
		}

		if err := generateAndPrint(cmd, modelID, input, cap); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
