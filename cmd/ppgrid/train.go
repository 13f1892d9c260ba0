package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/ppgrid/config"
	"github.com/YuminosukeSato/ppgrid/dataset"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/pp"
	"github.com/YuminosukeSato/ppgrid/report"
)

type trainFlags struct {
	trainDir string
	testDir  string
	width    int
	height   int
	plotPath string
	metric   string
}

func newTrainCmd() *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:   "train --train <dir> --test <dir>",
		Short: "Train every (variant, family, label) model and print held-out stats",
		Long: `Each directory holds an attributes.jsonl file, one JSON object per image,
and the images themselves. A row names its image in the "image" field; without
it, images are paired with rows in lexical file order.`,
		Example: `$ ppgrid train --train data/train --test data/test --plot stats.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.trainDir, "train", "", "training dataset directory")
	flags.StringVar(&f.testDir, "test", "", "held-out dataset directory")
	flags.IntVar(&f.width, "width", 0, "resize images to this width (0 keeps the first image's width)")
	flags.IntVar(&f.height, "height", 0, "resize images to this height (0 keeps the first image's height)")
	flags.StringVar(&f.plotPath, "plot", "", "write a bar chart of the stats to this file")
	flags.StringVar(&f.metric, "metric", pp.ScoreKey, "metric drawn by --plot")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

func runTrain(cmd *cobra.Command, f trainFlags) error {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	level, err := settings.Level()
	if err != nil {
		return err
	}
	provider := log.NewZerologProvider(os.Stderr, level)
	provider.RouteWarnings()
	log.SetProvider(provider)
	logger := log.GetLoggerWithName("ppgrid")

	cfg, err := settings.Config()
	if err != nil {
		return err
	}
	cfg.Logger = logger
	cfg.Registerer = prometheus.NewRegistry()

	o, err := pp.NewOrchestrator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if err := train(ctx, o, f, logger); err != nil {
		return err
	}

	if err := report.WriteTable(cmd.OutOrStdout(), o.Stats()); err != nil {
		return err
	}
	if f.plotPath != "" {
		if err := report.PlotStats(o.Stats(), f.metric, f.plotPath); err != nil {
			return err
		}
		logger.Info("Stats plot written", "path", f.plotPath)
	}
	return nil
}

func train(ctx context.Context, o *pp.Orchestrator, f trainFlags, logger log.Logger) error {
	trainSet, err := dataset.LoadDir(f.trainDir, f.width, f.height)
	if err != nil {
		return err
	}
	// 学習データと同じ大きさに揃える
	width, height := f.width, f.height
	if width == 0 || height == 0 {
		width, height = trainSet.Images.W, trainSet.Images.H
	}
	testSet, err := dataset.LoadDir(f.testDir, width, height)
	if err != nil {
		return err
	}

	trained, err := o.TrainAll(ctx, trainSet)
	if err != nil {
		return err
	}
	if trained.Failed() > 0 {
		logger.Warn("Some models could not be trained",
			log.FailuresKey, trained.Failed(),
			log.ErrorKey, trained.Err(),
		)
	}

	evaluated, err := o.Evaluate(ctx, testSet)
	if err != nil {
		return err
	}
	if evaluated.Failed() > 0 {
		logger.Warn("Some models could not be evaluated",
			log.FailuresKey, evaluated.Failed(),
			log.ErrorKey, evaluated.Err(),
		)
	}
	return nil
}
