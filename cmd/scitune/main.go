// Command scitune tunes and compares regression families as described by
// an experiment file.
//
//	scitune -config experiment.yaml
//	scitune -config experiment.toml -seed 7 -workers 8 -plot-dir plots
//	scitune -families
//
// Exit codes: 0 success, 1 load or run failure, 2 usage or validation error,
// 130 interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/scitune/config"
	"github.com/YuminosukeSato/scitune/experiment"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/pkg/log"
	"github.com/YuminosukeSato/scitune/sklearn/estimators"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("scitune", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "実験設定ファイル (.yaml, .yml, .toml)")
	seed := fs.Uint64("seed", 0, "乱数シード (設定ファイルを上書き)")
	workers := fs.Int("workers", 0, "並列ワーカー数, 0 = CPU数 (設定ファイルを上書き)")
	level := fs.String("log-level", "", "ログレベル: debug|info|warn|error")
	format := fs.String("log-format", "", "ログ形式: console|json")
	plotDir := fs.String("plot-dir", "", "メトリクス図の出力先ディレクトリ")
	colorMode := fs.String("color", "", "表の強調表示: auto|always|never")
	families := fs.Bool("families", false, "登録済みモデルファミリーとデフォルト値を表示")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	registry := estimators.NewRegistry()
	if *families {
		for _, name := range registry.Names() {
			f, _ := registry.Get(name)
			fmt.Printf("%-20s %s\n", name, f.Defaults())
		}
		return 0
	}
	if *cfgPath == "" {
		fmt.Fprintln(os.Stderr, "scitune: -config is required")
		fs.Usage()
		return 2
	}

	e, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scitune: %v\n", err)
		return 1
	}

	// 明示的に指定されたフラグだけ設定ファイルを上書きする
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			e.Seed = *seed
		case "workers":
			e.Workers = *workers
		case "log-level":
			e.Log.Level = *level
		case "log-format":
			e.Log.Format = *format
		case "plot-dir":
			e.Output.PlotDir = *plotDir
		case "color":
			e.Output.Color = *colorMode
		}
	})
	if err := e.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "scitune: %v\n", err)
		return 2
	}
	if err := log.SetupLogger(e.Log.Level, e.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "scitune: %v\n", err)
		return 2
	}
	logger := log.GetLoggerWithName("scitune")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &experiment.Runner{Registry: registry, Out: os.Stdout}
	_, err = runner.Run(ctx, e)
	return exitCode(logger, err, *cfgPath)
}

const exitInterrupted = 130

func exitCode(logger log.Logger, err error, cfgPath string) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		logger.Warn("Experiment interrupted", log.ConfigPathKey, cfgPath)
		return exitInterrupted
	default:
		logger.Error("Experiment failed", err, log.ConfigPathKey, cfgPath)
		return 1
	}
}
