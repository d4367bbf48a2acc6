package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stumble/whittle/pkg/clients/dcache"
	"github.com/stumble/whittle/pkg/clients/mysql"
	"github.com/stumble/whittle/pkg/config"
	"github.com/stumble/whittle/pkg/driver"
	"github.com/stumble/whittle/pkg/history"
	"github.com/stumble/whittle/pkg/notify"
	"github.com/stumble/whittle/pkg/passes"
	"github.com/stumble/whittle/pkg/reducer"
	"github.com/stumble/whittle/pkg/vcs"
)

const appName = "whittle"

func main() {
	genTemplate := flag.String("t", "", "generate a plan template with this name")
	filePath := flag.String("f", "", "file to reduce, in place unless -o is given")
	testScript := flag.String("test", "", "interestingness test, exit 0 when the file is still interesting")
	planPath := flag.String("plan", "", "reduction plan file")
	passList := flag.String("pass", "", "comma separated passes, name[:arg], instead of a plan file")
	outputPath := flag.String("o", "", "output file path")
	list := flag.Bool("list", false, "list passes")
	debug := flag.Bool("debug", false, "sets log level to debug")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Info().Msgf("whittle version: %s", vcs.Commit)

	if *list {
		for _, name := range passes.Names() {
			fmt.Printf("%-16s %s\n", name, passes.Describe(name))
		}
		return
	}

	if *genTemplate != "" {
		if *outputPath == "" {
			panic("-o template filepath not provided ")
		}
		tmpl, err := config.GenTemplate(*genTemplate)
		if err != nil {
			panic(err)
		}
		err = ioutil.WriteFile(*outputPath, []byte(tmpl), 0600)
		if err != nil {
			panic(err)
		}
		return
	}

	if *filePath == "" {
		panic("filepath not provided")
	}
	if *testScript == "" {
		panic("-test interestingness script not provided")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	plan := loadPlan(*planPath, *passList)

	target := passes.Target(*filePath)
	if *outputPath != "" {
		data, err := target.Read()
		if err != nil {
			panic(err)
		}
		target = passes.Target(*outputPath)
		if err := target.Write(data); err != nil {
			panic(err)
		}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cancel := &passes.CancelNotifier{}
	go func() {
		<-ctx.Done()
		cancel.Cancel()
	}()

	report, err := reduce(ctx, cfg, target, plan, *testScript, cancel)
	fmt.Print(report.String())
	if err != nil {
		log.Error().Err(err).Str("target", target.Path()).Msg("reduction failed")
		stop()
		os.Exit(1)
	}
}

func reduce(ctx context.Context, cfg *config.Config, target passes.Target, plan config.Plan,
	testScript string, cancel *passes.CancelNotifier) (reducer.Report, error) {
	planPasses, err := plan.Build()
	if err != nil {
		return reducer.Report{}, err
	}
	cache, err := newCache(cfg)
	if err != nil {
		return reducer.Report{}, err
	}
	defer cache.Close()

	recorder, closeRecorder, err := newRecorder(ctx, cfg)
	if err != nil {
		return reducer.Report{}, err
	}
	defer closeRecorder()

	r := &reducer.Reducer{
		Driver: &driver.Driver{
			Notifier: passes.MultiNotifier{
				notify.NewLogNotifier(),
				notify.NewMetricsNotifier(appName),
				cancel,
			},
			Metrics:       driver.NewMetrics(appName),
			MaxIterations: cfg.MaxIterations,
		},
		Oracle:    reducer.ScriptOracle{Command: testScript, Timeout: cfg.OracleTimeout},
		Cache:     cache,
		Recorder:  recorder,
		MaxRounds: cfg.MaxRounds,
		PlanName:  plan.Name,
	}
	return r.Reduce(ctx, target, planPasses)
}

func loadPlan(planPath, passList string) config.Plan {
	switch {
	case planPath != "" && passList != "":
		panic("-plan and -pass are exclusive")
	case planPath != "":
		plan, err := config.ParsePlanFromFile(planPath)
		if err != nil {
			panic(err)
		}
		return *plan
	case passList != "":
		plan, err := config.ParsePassList(passList)
		if err != nil {
			panic(err)
		}
		return plan
	}
	return config.DefaultPlan()
}

func newCache(cfg *config.Config) (dcache.Cache, error) {
	var primary redis.UniversalClient
	if cfg.RedisAddr != "" {
		primary = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	}
	return dcache.NewCache(appName, primary, freecache.NewCache(cfg.CacheSizeMB*1024*1024), cfg.CacheTTL.ToDuration())
}

func newRecorder(ctx context.Context, cfg *config.Config) (history.Recorder, func(), error) {
	if !cfg.HistoryEnabled {
		return history.NopRecorder{}, func() {}, nil
	}
	manager, err := mysql.NewMysqlManagerWithAppMetrics(mysql.ConfigFromEnv(), appName)
	if err != nil {
		return nil, nil, err
	}
	recorder, err := history.NewMySQLRecorder(ctx, manager)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}
	return recorder, manager.Close, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
