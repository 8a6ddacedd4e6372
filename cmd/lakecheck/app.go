package main

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	athenasdk "github.com/aws/aws-sdk-go-v2/service/athena"
	gluesdk "github.com/aws/aws-sdk-go-v2/service/glue"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/athena"
	"github.com/lakecheck/lakecheck/pkg/config"
	"github.com/lakecheck/lakecheck/pkg/llm"
	"github.com/lakecheck/lakecheck/pkg/logging"
	"github.com/lakecheck/lakecheck/pkg/schema"
	"github.com/lakecheck/lakecheck/pkg/sqlgen"
	"github.com/lakecheck/lakecheck/pkg/validator"
)

type globalOptions struct {
	configPath *string
	logLevel   *string
	region     *string
	profile    *string
}

// app holds the loaded configuration and logger, and builds the heavier
// collaborators (provider, cache, AWS clients) on demand so commands that
// only touch the cache never open an AWS session.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	opts   *globalOptions
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(*opts.configPath, version)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if *opts.logLevel != "" {
		level = *opts.logLevel
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, opts: opts}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
}

// store returns the generated-SQL cache, nil when caching is disabled.
func (a *app) store() *sqlgen.Store {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	return sqlgen.NewStore(a.cfg.Cache.Dir, a.cfg.Cache.TTL(), a.cfg.Cache.MaxEntries, a.logger)
}

// requireStore is store for the cache management commands, which make no
// sense against a disabled cache.
func (a *app) requireStore() (*sqlgen.Store, error) {
	store := a.store()
	if store == nil {
		return nil, errors.New("the SQL cache is disabled (set SQL_CACHE_ENABLED=true)")
	}
	return store, nil
}

func (a *app) provider() (llm.Provider, error) {
	if a.cfg.LLM.APIKey == "" && a.cfg.LLM.KeyID == "" {
		return nil, errors.New("no LLM credentials configured: set LLM_API_KEY, or LLM_KEY_ID and LLM_SECRET_KEY for the key-pair gateway")
	}

	p, err := llm.New(&llm.Config{
		Provider:    a.cfg.LLM.Provider,
		Endpoint:    a.cfg.LLM.Endpoint,
		Model:       a.cfg.LLM.Model,
		APIKey:      a.cfg.LLM.APIKey,
		KeyID:       a.cfg.LLM.KeyID,
		SecretKey:   a.cfg.LLM.SecretKey,
		Temperature: a.cfg.LLM.Temperature,
		Timeout:     a.cfg.LLM.Timeout(),
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return llm.WithBreaker(p, llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())), nil
}

func (a *app) generator() (*sqlgen.Generator, *sqlgen.Store, error) {
	provider, err := a.provider()
	if err != nil {
		return nil, nil, err
	}
	store := a.store()
	gen := sqlgen.NewGenerator(provider, store, sqlgen.GeneratorConfig{
		MaxTokens:    a.cfg.LLM.MaxTokens,
		SelfValidate: a.cfg.LLM.SelfValidate,
	}, a.logger)
	return gen, store, nil
}

// awsClients opens one AWS session and returns the Athena executor and the
// Glue catalog provider built on it.
func (a *app) awsClients(ctx context.Context) (*athena.Executor, *schema.GlueProvider, error) {
	region := a.cfg.AWS.Region
	if *a.opts.region != "" {
		region = *a.opts.region
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if *a.opts.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(*a.opts.profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}

	executor := athena.NewExecutor(
		athenasdk.NewFromConfig(awsCfg),
		s3sdk.NewFromConfig(awsCfg),
		athena.Config{
			Database:       a.cfg.AWS.Database,
			Workgroup:      a.cfg.AWS.Workgroup,
			OutputLocation: a.cfg.AWS.OutputLocation,
			Timeout:        a.cfg.AWS.QueryTimeout(),
		},
		a.logger,
	)
	catalog := schema.NewGlueProvider(gluesdk.NewFromConfig(awsCfg), a.logger)
	return executor, catalog, nil
}

// ddlFetcher returns the GitHub DDL source, nil unless configured.
func (a *app) ddlFetcher() *schema.DDLFetcher {
	gh := a.cfg.GitHub
	if !gh.IsAvailable() {
		return nil
	}
	return schema.NewDDLFetcher(gh.Owner, gh.Repo, gh.Branch, gh.Token, a.logger)
}

// buildValidator wires the full validation stack. LLM-backed pieces are
// optional: without provider credentials the validator still runs the SQL
// rules, it just cannot serve custom requests or narrated summaries.
func (a *app) buildValidator(ctx context.Context) (*validator.Validator, error) {
	executor, catalog, err := a.awsClients(ctx)
	if err != nil {
		return nil, err
	}

	opts := []validator.Option{
		validator.WithCatalog(catalog),
		validator.WithMaxConcurrent(a.cfg.Validation.MaxConcurrent),
	}
	if ddl := a.ddlFetcher(); ddl != nil {
		opts = append(opts, validator.WithDDLSource(ddl))
	}
	if gen, store, err := a.generator(); err == nil {
		opts = append(opts, validator.WithGenerator(gen))
		if store != nil {
			opts = append(opts, validator.WithCache(store))
		}
	} else {
		a.logger.Debug("running without LLM generation", zap.Error(err))
	}

	return validator.New(executor, a.logger, opts...), nil
}
