package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/policycov/internal/config"
	"github.com/user/policycov/internal/coverage"
	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/logger"
	"github.com/user/policycov/internal/report"
	"github.com/user/policycov/internal/runner"
)

// Version information
var Version = "0.1.0"

const annotationThreshold = "policycov/default-threshold"

// app holds the state of one invocation
type app struct {
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper
	log    *log.Logger
	cfg    *config.Config
	now    func() time.Time

	configFile string
}

// reportCommand describes the inputs and defaults of one report command
type reportCommand struct {
	kind      report.Kind
	short     string
	output    string
	threshold string // empty for no default threshold
	results   bool
	coverage  bool
	root      bool
}

var reportCommands = []reportCommand{
	{
		kind:    report.KindTests,
		short:   "Convert policy test results into a JUnit report with one suite per policy",
		output:  "policy-tests.xml",
		results: true,
	},
	{
		kind:      report.KindSummary,
		short:     "Build a combined JUnit report with one case per policy and per coverage area",
		output:    "policy-summary.xml",
		threshold: "95",
		results:   true,
		coverage:  true,
	},
	{
		kind:      report.KindCoverage,
		short:     "Build a JUnit report with a single overall coverage case",
		output:    "policy-coverage.xml",
		threshold: "95",
		coverage:  true,
	},
	{
		kind:     report.KindCobertura,
		short:    "Convert policy coverage into a Cobertura report",
		output:   "cobertura.xml",
		coverage: true,
		root:     true,
	},
}

// Run executes the CLI with the given arguments and returns the exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		v:      config.New(),
		log:    logger.New(stderr, log.InfoLevel, false),
		now:    time.Now,
	}

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return errUtils.ExitOK
	}

	a.log.Error(err.Error())
	for _, hint := range errUtils.Hints(err) {
		a.log.Info(hint)
	}
	return errUtils.GetExitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "policycov",
		Short: "Turn policy test results and coverage into JUnit and Cobertura reports",
		Long: `policycov reads the JSON written by a policy test run (test results and
line coverage) and renders CI-friendly XML reports. The exit status is
non-zero when tests fail or coverage is below the threshold.`,
		Example: `  opa test policy --format=json > results.json
  opa test policy --coverage --format=json > coverage.json

  policycov tests --results results.json
  policycov summary --results results.json --coverage coverage.json -t 90
  policycov coverage --coverage coverage.json -o coverage-junit.xml
  policycov cobertura --coverage coverage.json --root ./policy`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errUtils.Build(err).
			WithSentinel(errUtils.ErrInvalidConfig).
			WithHint("run policycov --help for usage").
			WithExitCode(errUtils.ExitInvalidConfig).
			Err()
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file path (default: .policycov.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn, error, fatal (default: info)")
	flags.Bool("no-color", false, "Disable color output")
	flags.StringP("threshold", "t", "", "Coverage threshold percentage between 0 and 100")
	flags.BoolP("verbose", "v", false, "Print the per-area coverage table")

	for _, rc := range reportCommands {
		root.AddCommand(a.reportCmd(rc))
	}
	root.AddCommand(a.versionCmd())
	return root
}

func (a *app) reportCmd(rc reportCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(rc.kind),
		Short: rc.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd.Context(), rc)
		},
	}
	if rc.threshold != "" {
		cmd.Annotations = map[string]string{annotationThreshold: rc.threshold}
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", rc.output, "Output file")
	if rc.results {
		flags.String("results", "", "Test results JSON (opa test --format=json)")
	}
	if rc.coverage {
		flags.String("coverage", "", "Coverage JSON (opa test --coverage --format=json)")
	}
	if rc.root {
		flags.String("root", config.DefaultRoot, "Source root recorded in the report")
	}
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "policycov version %s\n", Version)
		},
	}
}

// setup resolves the configuration once cobra has parsed the flags
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if d, ok := cmd.Annotations[annotationThreshold]; ok {
		a.v.SetDefault(config.KeyThreshold, d)
	}
	if err := config.ReadFile(a.v, a.configFile, "."); err != nil {
		return err
	}
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.New(a.stderr, level, cfg.NoColor)
	if cfg.File != "" {
		a.log.Debug("Loaded config file", "file", cfg.File)
	}
	return nil
}

func (a *app) runReport(ctx context.Context, rc reportCommand) error {
	cfg := a.cfg
	if err := requireInputs(rc, cfg); err != nil {
		return err
	}

	var results []runner.Result
	if rc.results {
		var err error
		if results, err = runner.LoadResults(cfg.Results); err != nil {
			return err
		}
		a.log.Debug("Loaded test results", "file", cfg.Results, "tests", len(results))
	}

	var cov *coverage.Report
	if rc.coverage {
		var err error
		if cov, err = coverage.LoadReport(cfg.Coverage); err != nil {
			return err
		}
		a.log.Debug("Loaded coverage", "file", cfg.Coverage, "files", len(cov.Files))
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "interrupted")
	}

	model := report.NewModel(results, cov, cfg.Namer())
	a.log.Debug("Aggregated",
		"policies", len(model.TestGroups), "areas", len(model.Areas), "directories", len(model.Directories))

	builder, err := report.New(rc.kind, report.Options{
		Threshold: cfg.Threshold,
		Root:      cfg.Root,
		Now:       a.now(),
	})
	if err != nil {
		return err
	}
	doc, err := builder.Build(model)
	if err != nil {
		return err
	}
	if err := report.WriteFile(cfg.Output, doc); err != nil {
		return err
	}
	a.log.Debug("Report written", "kind", rc.kind, "file", cfg.Output)

	printSummary(a.stdout, summaryInput{
		kind:      rc.kind,
		output:    cfg.Output,
		model:     model,
		verdict:   doc.Verdict,
		threshold: cfg.Threshold,
		noColor:   cfg.NoColor,
	})
	if cfg.Verbose {
		if rc.results {
			printPolicies(a.stdout, model.TestGroups)
		}
		if rc.coverage {
			coverage.PrintReport(a.stdout, model.Areas, model.Overall, true)
		}
	}

	return doc.Verdict.Err()
}

func requireInputs(rc reportCommand, cfg *config.Config) error {
	if rc.results && cfg.Results == "" {
		return errUtils.InvalidConfig("%s report needs --results", rc.kind)
	}
	if rc.coverage && cfg.Coverage == "" {
		return errUtils.InvalidConfig("%s report needs --coverage", rc.kind)
	}
	if cfg.Output == "" {
		return errUtils.InvalidConfig("output path must not be empty")
	}
	return nil
}
