package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/pipeline"
	"github.com/rxtech-lab/argo-patterns/internal/server"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// cycleFile is the YAML document handed to the run command: one day of
// collaborator output.
type cycleFile struct {
	Date           string  `yaml:"date"`
	SentimentIndex float64 `yaml:"sentiment_index"`
	PortfolioValue float64 `yaml:"portfolio_value"`

	Metrics   []types.MarketMetrics `yaml:"metrics"`
	Decisions []types.AIDecision    `yaml:"decisions"`
	Closes    []types.CloseEvent    `yaml:"closes"`
	Fills     []types.BrokerFill    `yaml:"fills"`
	Prices    map[string]float64    `yaml:"prices"`
}

func loadCycleFile(path string) (pipeline.CycleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.CycleInput{}, fmt.Errorf("failed to read cycle file: %w", err)
	}

	var file cycleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return pipeline.CycleInput{}, fmt.Errorf("failed to parse cycle file: %w", err)
	}

	asOf := time.Now().UTC()

	if file.Date != "" {
		asOf, err = time.Parse("2006-01-02", file.Date)
		if err != nil {
			return pipeline.CycleInput{}, fmt.Errorf("invalid cycle date %q: %w", file.Date, err)
		}
	}

	return pipeline.CycleInput{
		AsOf:           asOf,
		SentimentIndex: file.SentimentIndex,
		PortfolioValue: file.PortfolioValue,
		Metrics:        file.Metrics,
		Decisions:      file.Decisions,
		Closes:         file.Closes,
		Fills:          file.Fills,
		Prices:         file.Prices,
	}, nil
}

func newPipeline(cmd *cli.Command, log *logger.Logger) (*pipeline.Pipeline, error) {
	config := pipeline.DefaultConfig()

	if path := cmd.String("config"); path != "" {
		var err error

		config, err = pipeline.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	return pipeline.NewPipeline(config, log)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	input, err := loadCycleFile(cmd.String("input"))
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.RunCycle(ctx, input)
	if err != nil {
		return err
	}

	for _, itemErr := range result.ItemErrors {
		log.Warn("Item failed during cycle", zap.Error(itemErr))
	}

	fmt.Printf("regime=%s opened=%d closed=%d skipped=%d realized_pnl=%.2f memories=%d\n",
		result.Assessment.Regime,
		len(result.Opened),
		len(result.Closed),
		len(result.Skipped),
		result.RealizedPnL,
		result.MemoriesInjected,
	)

	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	p, err := newPipeline(cmd, log)
	if err != nil {
		return err
	}
	defer p.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(p, log, cmd.String("addr"))

	return srv.Start(signalCtx)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the engine config YAML",
	}

	cmd := &cli.Command{
		Name:  "argo-patterns",
		Usage: "Pattern performance tracking and regime-adaptive trade lifecycle engine",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one decision cycle from a cycle input file",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to the cycle input YAML",
						Required: true,
					},
				},
				Action: runAction,
			},
			{
				Name:  "serve",
				Usage: "Serve the read-only monitoring API",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":8080",
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log, logErr := logger.NewLogger()
		if logErr == nil {
			log.Fatal("Command failed", zap.Error(err))
		}

		os.Exit(1)
	}
}
