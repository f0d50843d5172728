package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pddlgrader/internal/common/cache"
	"pddlgrader/internal/common/mq"
	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/events"
	"pddlgrader/internal/grader/judge"
	"pddlgrader/internal/grader/model"
	"pddlgrader/internal/grader/report"
	"pddlgrader/internal/grader/resolution"
	"pddlgrader/internal/grader/roster"
	"pddlgrader/internal/grader/service"
	"pddlgrader/internal/grader/solver"
	"pddlgrader/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/pddl_grader.yaml"

type options struct {
	configPath string
	mode       int
	file       string
	rename     bool
	initCache  bool
	workers    int
	out        string
	judge      string
	knownWrong []string
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	flag.IntVar(&opts.mode, "mode", 0, "Grading mode: 1 grades student domains, 2 grades student problems")
	flag.StringVar(&opts.file, "file", "", "Grade a single submission and print its classification")
	flag.BoolVar(&opts.rename, "rename", false, "Rename LMS downloads to Surname_Given.pddl before grading")
	flag.BoolVar(&opts.initCache, "init-cache", false, "Start from empty decision sets and overwrite the stored ones")
	flag.IntVar(&opts.workers, "workers", 0, "Override worker pool size")
	flag.StringVar(&opts.out, "out", "", "Override output CSV path")
	flag.StringVar(&opts.judge, "judge", "", "Judge for unseen plans: console, reject or abort")
	flag.Func("wrong", "Known-wrong reference submission; matching plans fail without a prompt (repeatable)", func(v string) error {
		opts.knownWrong = append(opts.knownWrong, v)
		return nil
	})
	flag.Parse()

	mode, err := model.ParseMode(opts.mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		return 2
	}
	cfg, err := loadAppConfig(opts.configPath, flagSet("config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return 1
	}
	if opts.workers > 0 {
		cfg.Grading.Workers = opts.workers
	}
	if opts.judge != "" {
		cfg.Grading.Judge = opts.judge
	}
	modeCfg := cfg.ForMode(mode)
	if opts.out != "" {
		modeCfg.Output = opts.out
	}
	modeCfg.KnownWrong = append(modeCfg.KnownWrong, opts.knownWrong...)

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// the first signal cancels grading; restoring default handling lets a second one kill the process
	context.AfterFunc(ctx, stop)
	ctx = logger.WithMode(logger.NewContext(ctx, uuid.NewString()), int(mode))

	g := &grader{cfg: cfg, mode: mode, modeCfg: modeCfg, opts: opts}
	defer g.close()
	return g.run(ctx)
}

// flagSet reports whether name was given on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

type grader struct {
	cfg     *AppConfig
	mode    model.Mode
	modeCfg ModeConfig
	opts    options

	objects  *storage.MinIOStorage
	closers  []func() error
	resolver *resolution.Cache
	store    resolution.Store
}

func (g *grader) run(ctx context.Context) int {
	if g.opts.rename {
		renamed, err := roster.Rename(g.modeCfg.SubmissionsDir)
		for _, r := range renamed {
			fmt.Printf("Renamed %s -> %s\n", filepath.Base(r.From), filepath.Base(r.To))
		}
		if err != nil {
			logger.Error(ctx, "rename submissions failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "rename failed: %v\n", err)
			return 1
		}
	}

	svc, err := g.buildService(ctx)
	if err != nil {
		logger.Error(ctx, "init grader failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "init grader failed: %v\n", err)
		return 1
	}

	domainPath, problemPath, fixedPath := g.cfg.Inputs(g.mode)
	baseline, err := svc.Baseline(ctx, domainPath, problemPath)
	if err != nil {
		logger.Error(ctx, "baseline failed", zap.Error(err))
		fmt.Println("Error: Could not retrieve baseline solution.")
		return 1
	}
	knownWrong, err := svc.KnownWrong(ctx, g.modeCfg.KnownWrong, fixedPath, g.mode)
	if err != nil {
		logger.Error(ctx, "known-wrong reference failed", zap.Error(err))
		fmt.Println("Error: Could not retrieve known-wrong solution.")
		return 1
	}
	req := service.GradeRequest{Baseline: baseline, KnownWrong: knownWrong, FixedPath: fixedPath, Mode: g.mode}

	if g.opts.file != "" {
		return g.gradeOne(ctx, svc, req)
	}

	subs, err := roster.List(g.modeCfg.SubmissionsDir)
	if err != nil {
		logger.Error(ctx, "list submissions failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "list submissions failed: %v\n", err)
		return 1
	}
	req.Submissions = subs
	logger.Info(ctx, "grading submissions", zap.Int("count", len(subs)), zap.String("dir", g.modeCfg.SubmissionsDir))

	result, err := svc.GradeAll(ctx, req)
	if err != nil {
		logger.Error(ctx, "grading failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "grading failed: %v\n", err)
		return 1
	}
	for _, d := range result.Dropped {
		fmt.Printf("Skipped %s: %v\n", d.Submission.Path, d.Err)
	}

	if err := report.WriteFile(g.modeCfg.Output, result.Verdicts); err != nil {
		logger.Error(ctx, "write report failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "write report failed: %v\n", err)
		return 1
	}
	g.upload(ctx)
	saved := g.saveDecisions(ctx)

	fmt.Println(report.Summarize(result.Verdicts, len(result.Dropped)))
	fmt.Printf("Grading completed. Results saved to %s\n", g.modeCfg.Output)
	if !saved {
		return 1
	}
	return 0
}

func (g *grader) gradeOne(ctx context.Context, svc *service.Service, req service.GradeRequest) int {
	sub := roster.FromPath(g.opts.file)
	v, err := svc.GradeOne(ctx, sub, req)
	if err != nil {
		logger.Error(ctx, "grade submission failed", zap.String("path", sub.Path), zap.Error(err))
		fmt.Printf("Skipped %s: %v\n", sub.Path, err)
		return 1
	}
	if v.Reason == model.ReasonNone {
		fmt.Printf("%s: %s\n", sub.StudentID, v.Status)
	} else {
		fmt.Printf("%s: %s (%s)\n", sub.StudentID, v.Status, v.Reason)
	}
	if !g.saveDecisions(ctx) {
		return 1
	}
	return 0
}

func (g *grader) buildService(ctx context.Context) (*service.Service, error) {
	j, err := g.buildJudge()
	if err != nil {
		return nil, err
	}
	store, err := g.buildStore()
	if err != nil {
		return nil, err
	}
	g.store = store

	seed := resolution.Decisions{}
	if g.opts.initCache {
		logger.Info(ctx, "starting with empty decision sets")
	} else {
		loadCtx, cancel := context.WithTimeout(ctx, g.cfg.Decisions.Timeout)
		seed, err = store.Load(loadCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "decision sets loaded",
			zap.Int("accepted", len(seed.Accepted)), zap.Int("rejected", len(seed.Rejected)))
	}
	g.resolver = resolution.New(j, seed)

	var publisher events.Publisher
	if g.cfg.Kafka.Enabled() {
		producer, err := mq.NewKafkaProducer(g.cfg.Kafka)
		if err != nil {
			return nil, err
		}
		g.closers = append(g.closers, producer.Close)
		publisher = events.NewMQPublisher(producer, g.cfg.Kafka.Topic)
	}

	runID, _ := logger.RunID(ctx)
	return service.NewService(service.Config{
		Solver:       solver.New(g.cfg.Solver),
		Resolver:     g.resolver,
		Publisher:    publisher,
		RunID:        runID,
		PoolSize:     g.cfg.Grading.Workers,
		SolveTimeout: g.cfg.Grading.SolveTimeout,
	})
}

func (g *grader) buildJudge() (resolution.Judge, error) {
	policy, err := judge.ParsePolicy(g.cfg.Grading.Judge)
	if err != nil {
		return nil, err
	}
	if policy != judge.PolicyConsole {
		return judge.NewStatic(policy), nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return judge.NewPiped(os.Stdin, os.Stdout), nil
	}
	console, closeFn, err := judge.NewTerminal(os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	g.closers = append(g.closers, closeFn)
	return console, nil
}

func (g *grader) buildStore() (resolution.Store, error) {
	switch g.cfg.Decisions.Backend {
	case backendRedis:
		redisCache, err := cache.NewRedisCacheWithConfig(&g.cfg.Redis)
		if err != nil {
			return nil, err
		}
		g.closers = append(g.closers, redisCache.Close)
		return resolution.NewRedisStore(redisCache, g.cfg.Decisions.KeyPrefix, g.mode), nil
	case backendObject:
		objects, err := g.objectStorage()
		if err != nil {
			return nil, err
		}
		return resolution.NewObjectStore(objects, g.cfg.MinIO.Bucket, g.cfg.Decisions.KeyPrefix, g.mode), nil
	default:
		return resolution.NewFileStore(g.modeCfg.AcceptedDecisions, g.modeCfg.RejectedDecisions), nil
	}
}

func (g *grader) objectStorage() (*storage.MinIOStorage, error) {
	if g.objects != nil {
		return g.objects, nil
	}
	objects, err := storage.NewMinIOStorage(g.cfg.MinIO)
	if err != nil {
		return nil, err
	}
	g.objects = objects
	return objects, nil
}

func (g *grader) upload(ctx context.Context) {
	if !g.cfg.Report.Upload {
		return
	}
	objects, err := g.objectStorage()
	if err != nil {
		logger.Warn(ctx, "report storage unavailable", zap.Error(err))
		return
	}
	prefix := g.cfg.Report.Prefix
	if runID, ok := logger.RunID(ctx); ok {
		prefix = filepath.ToSlash(filepath.Join(prefix, runID))
	}
	key, err := report.NewUploader(objects, g.cfg.MinIO.Bucket, prefix).
		Upload(ctx, filepath.Base(g.modeCfg.Output), g.modeCfg.Output)
	if err != nil {
		logger.Warn(ctx, "upload report failed", zap.Error(err))
		return
	}
	logger.Info(ctx, "report uploaded", zap.String("bucket", g.cfg.MinIO.Bucket), zap.String("key", key))
}

// saveDecisions stops the resolver and persists both sets, even after an interrupt.
func (g *grader) saveDecisions(ctx context.Context) bool {
	if g.resolver == nil || g.store == nil {
		return true
	}
	g.resolver.Close()
	stats := g.resolver.Stats()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Decisions.Timeout)
	defer cancel()
	if err := g.store.Save(saveCtx, g.resolver.Snapshot()); err != nil {
		logger.Error(ctx, "save decision sets failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "save decision sets failed: %v\n", err)
		return false
	}
	logger.Info(ctx, "decision sets saved",
		zap.Int("accepted", stats.Accepted), zap.Int("rejected", stats.Rejected),
		zap.Int64("cache_hits", stats.Hits), zap.Int64("prompts", stats.Prompts))
	return true
}

func (g *grader) close() {
	if g.resolver != nil {
		g.resolver.Close()
	}
	for i := len(g.closers) - 1; i >= 0; i-- {
		_ = g.closers[i]()
	}
}
