// =============================================================================
// ResearchHub 命令行入口
// =============================================================================
//
// 使用方法:
//
//	researchhub ask "compare RAG and fine-tuning"        # 编排器处理请求
//	researchhub research --config config.yaml "AI agents" # 研究工作流
//	researchhub run --plan plan.yaml --min-confidence 0.6 # 执行计划文件
//	researchhub version
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchhub/agent/handoff"
	"github.com/BaSui01/researchhub/agent/orchestrator"
	"github.com/BaSui01/researchhub/config"
)

// =============================================================================
// 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "ask":
		return runCommand("ask", args[1:], stdout, stderr)
	case "research":
		return runCommand("research", args[1:], stdout, stderr)
	case "run":
		return runCommand("run", args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

// commandOptions are the flags shared by ask, research and run.
type commandOptions struct {
	configPath    string
	planPath      string
	minConfidence float64
	timeout       time.Duration
	asJSON        bool
	text          string
}

func parseCommand(name string, args []string, stderr io.Writer) (*commandOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &commandOptions{}
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (YAML)")
	fs.BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Override the plan timeout")
	if name == "run" {
		fs.StringVar(&opts.planPath, "plan", "", "Path to plan file (YAML)")
		fs.Float64Var(&opts.minConfidence, "min-confidence", 0, "Confidence threshold for conditional plans")
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.text = strings.TrimSpace(strings.Join(fs.Args(), " "))

	switch {
	case name == "run" && opts.planPath == "":
		return nil, fmt.Errorf("run requires --plan")
	case name != "run" && opts.text == "":
		return nil, fmt.Errorf("%s requires a request text", name)
	case opts.minConfidence < 0 || opts.minConfidence > 1:
		return nil, fmt.Errorf("--min-confidence must be within [0, 1]")
	}
	return opts, nil
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithEnvPrefix("RESEARCHHUB")
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

func runCommand(name string, args []string, stdout, stderr io.Writer) int {
	opts, err := parseCommand(name, args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if opts.timeout > 0 {
		cfg.Coordinator.DefaultTimeout = opts.timeout
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reasoner, err := newReasoner(cfg.Reasoning, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create reasoning client: %v\n", err)
		return 1
	}
	a, err := newApp(ctx, cfg, logger, reasoner)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("researchhub starting",
		zap.String("command", name),
		zap.String("version", Version),
		zap.Strings("workers", workerNames(a.coordinator.Workers())),
	)

	resp, err := execute(ctx, a, name, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := printResponse(stdout, resp, opts.asJSON); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if resp.Result != nil && (resp.Result.TimedOut || resp.Result.Cancelled) {
		return 3
	}
	return 0
}

// execute dispatches one subcommand against a wired app.
func execute(ctx context.Context, a *app, name string, opts *commandOptions) (*orchestrator.Response, error) {
	switch name {
	case "ask":
		return a.orchestrator.Process(ctx, opts.text)
	case "research":
		plan, err := a.orchestrator.ResearchWorkflow(opts.text)
		if err != nil {
			return nil, err
		}
		return a.orchestrator.Run(ctx, opts.text, plan)
	case "run":
		var planOpts []handoff.PlanOption
		if opts.minConfidence > 0 {
			planOpts = append(planOpts, handoff.WithCondition(
				handoff.All(handoff.SucceededOnly, handoff.MinConfidence(opts.minConfidence)),
			))
		}
		if opts.timeout > 0 {
			planOpts = append(planOpts, handoff.WithTimeout(opts.timeout))
		}
		plan, err := handoff.LoadPlanFile(opts.planPath, planOpts...)
		if err != nil {
			return nil, err
		}
		request := opts.text
		if request == "" {
			request = fmt.Sprintf("Execute plan %s", plan.ID())
		}
		return a.orchestrator.Run(ctx, request, plan)
	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

func printResponse(w io.Writer, resp *orchestrator.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(w, resp.Answer)
	if resp.Result == nil {
		return nil
	}
	fmt.Fprintf(w, "\n--- plan %s (%s) in %s ---\n",
		resp.Result.PlanID, resp.Result.Strategy, resp.Result.Elapsed.Round(time.Millisecond))
	for i, o := range resp.Result.Outcomes {
		status := "ok"
		switch {
		case o.TimedOut():
			status = "timeout"
		case o.Cancelled():
			status = "cancelled"
		case !o.Success:
			status = "failed: " + o.Error
		}
		fmt.Fprintf(w, "%d. %-18s %s (%s)\n", i+1, o.Worker, status, o.Elapsed.Round(time.Millisecond))
	}
	if resp.Retries > 0 {
		fmt.Fprintf(w, "retries: %d\n", resp.Retries)
	}
	return nil
}

func workerNames(ids []handoff.WorkerID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}

// =============================================================================
// 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ResearchHub %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ResearchHub - multi-agent research assistant

Usage:
  researchhub <command> [options] [text]

Commands:
  ask        Analyze a request, run the resulting plan and synthesize an answer
  research   Run the research workflow (web -> analyzer -> summary) for a query
  run        Execute a YAML plan file
  version    Show version information
  help       Show this help message

Options:
  --config <path>          Path to configuration file (YAML)
  --timeout <duration>     Override the plan timeout (e.g. 90s)
  --json                   Print the full result as JSON

Options for 'run':
  --plan <path>            Plan file (strategy, merge_results, timeout, handoffs)
  --min-confidence <0..1>  Stop a conditional plan when confidence drops below this

Environment:
  ANTHROPIC_API_KEY                         Reasoning service key
  RESEARCHHUB_<SECTION>_<FIELD>             Override any config field

Examples:
  researchhub ask "What are the latest developments in AI agents?"
  researchhub research --config /etc/researchhub/config.yaml "retrieval augmented generation"
  researchhub run --plan plan.yaml --min-confidence 0.6`)
}
