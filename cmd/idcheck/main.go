package main

import (
	"fmt"
	"os"

	"github.com/Brownie44l1/id-validator/internal/config"
	"github.com/Brownie44l1/id-validator/internal/logging"
	"github.com/Brownie44l1/id-validator/internal/validator"
	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "YAML configuration file",
	}
	libraryFlag = cli.StringFlag{
		Name:   "ort-lib",
		Usage:  "path to the onnxruntime shared library",
		EnvVar: "ONNXRUNTIME_LIB",
	}
	threadsFlag = cli.IntFlag{
		Name:  "threads",
		Usage: "intra-op threads used by onnxruntime (0 lets the runtime decide)",
	}
	maxBytesFlag = cli.Int64Flag{
		Name:  "max-image-bytes",
		Usage: "reject images larger than this many bytes",
	}
	maxPixelsFlag = cli.Int64Flag{
		Name:  "max-pixels",
		Usage: "reject images whose width*height exceeds this, checked before decoding",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "log level: debug|info|warn|error",
	}
	logFormatFlag = cli.StringFlag{
		Name:  "log-format",
		Usage: "log format: console|json",
	}
	logFileFlag = cli.StringFlag{
		Name:  "log-file",
		Usage: "also write JSON logs to this file, rotated by size",
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "print one JSON object per image instead of a table",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "idcheck"
	app.Usage = "classify identity document photos as invalid, valid_back or valid_front"
	app.ArgsUsage = "IMAGE [IMAGE...]"
	app.Flags = []cli.Flag{
		configFlag,
		libraryFlag,
		threadsFlag,
		maxBytesFlag,
		maxPixelsFlag,
		logLevelFlag,
		logFormatFlag,
		logFileFlag,
		jsonFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if len(ctx.Args()) == 0 {
		return cli.NewExitError("no images given; see idcheck --help", 2)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, os.Stderr)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("failed to configure logger: %v", err), 2)
	}
	defer closeLog()

	logger.Info("loading embedded model",
		zap.String("runtime_library", cfg.Runtime.LibraryPath),
		zap.Int("intra_op_threads", cfg.Runtime.IntraOpThreads))

	model, err := validator.Setup(validator.Config{
		MaxImageBytes: cfg.Validation.MaxImageBytes,
		MaxPixels:     cfg.Validation.MaxPixels,
		Compiler:      validator.ORTCompiler(cfg.Runtime.LibraryPath, cfg.Runtime.IntraOpThreads),
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize model", zap.Error(err))
		return cli.NewExitError(err.Error(), 1)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn("model shutdown error", zap.Error(err))
		}
	}()

	reports := classifyFiles(model, ctx.Args(), cfg.Validation.MaxImageBytes, logger)

	var out reporter = tableReporter{}
	if ctx.Bool(jsonFlag.Name) {
		out = jsonReporter{}
	}
	if err := out.report(os.Stdout, reports); err != nil {
		return cli.NewExitError(fmt.Sprintf("failed to write results: %v", err), 1)
	}

	for _, r := range reports {
		if r.Err != nil {
			return cli.NewExitError("", 1)
		}
	}
	return nil
}

// loadConfig reads the optional config file and applies flags on top.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if v := ctx.String(libraryFlag.Name); v != "" {
		cfg.Runtime.LibraryPath = v
	}
	if ctx.IsSet(threadsFlag.Name) {
		cfg.Runtime.IntraOpThreads = ctx.Int(threadsFlag.Name)
	}
	if ctx.IsSet(maxBytesFlag.Name) {
		cfg.Validation.MaxImageBytes = ctx.Int64(maxBytesFlag.Name)
	}
	if ctx.IsSet(maxPixelsFlag.Name) {
		cfg.Validation.MaxPixels = ctx.Int64(maxPixelsFlag.Name)
	}
	if v := ctx.String(logLevelFlag.Name); v != "" {
		cfg.Log.Level = v
	}
	if v := ctx.String(logFormatFlag.Name); v != "" {
		cfg.Log.Format = v
	}
	if v := ctx.String(logFileFlag.Name); v != "" {
		cfg.Log.File = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
