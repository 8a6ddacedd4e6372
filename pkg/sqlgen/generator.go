package sqlgen

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lakecheck/lakecheck/pkg/jsonutil"
	"github.com/lakecheck/lakecheck/pkg/llm"
	"github.com/lakecheck/lakecheck/pkg/logging"
	"github.com/lakecheck/lakecheck/pkg/sqlcheck"
)

const (
	generationMaxTokens = 800
	validationMaxTokens = 600
	summaryMaxTokens    = 800

	defaultMaxAttempts = 2
	defaultMaxElapsed  = 45 * time.Second
)

// gatewaySchemaSentinel is injected into responses by the legacy gateway
// when it cannot resolve referenced columns; it is not model output.
const gatewaySchemaSentinel = "Schema not found for one or more columns"

// GeneratorConfig bounds the orchestrator's retry and audit behavior.
// Zero values fall back to the defaults above.
type GeneratorConfig struct {
	// MaxAttempts is the provider-call retry budget per request.
	MaxAttempts int
	// MaxElapsed caps wall-clock time across all attempts of one request;
	// once exceeded, remaining budget is abandoned and the request goes
	// straight to fallback.
	MaxElapsed time.Duration
	// MaxTokens caps the generation response. Audit and summary calls
	// keep their own smaller budgets.
	MaxTokens int
	// SelfValidate adds a second provider round-trip that audits the
	// generated statement against a fixed checklist.
	SelfValidate bool
}

// Generator drives one request through cache lookup, provider call,
// response recovery, syntax repair, optional self-validation, and the
// preflight gate. Every failure path terminates in a fallback result;
// Generate never returns an error.
type Generator struct {
	provider llm.Provider
	store    *Store
	cfg      GeneratorConfig
	logger   *zap.Logger
}

// NewGenerator wires the orchestrator. store may be nil, which disables
// caching entirely.
func NewGenerator(provider llm.Provider, store *Store, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = generationMaxTokens
	}
	return &Generator{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("generator"),
	}
}

// Generate resolves one request into a SQL pair. The result's Origin
// records whether it came from the cache, a fresh provider round-trip,
// or the fallback templates. The cache is written exactly once, and only
// for generated results.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	log := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("legacy_table", req.LegacyTable),
		zap.String("prod_table", req.ProdTable),
	)

	if g.store != nil {
		if res, ok := g.store.Get(req); ok {
			return res
		}
	}

	systemMsg, userPrompt := buildPrompt(req)
	start := time.Now()

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if elapsed := time.Since(start); elapsed > g.cfg.MaxElapsed {
			log.Warn("generation time ceiling exceeded",
				zap.Duration("elapsed", elapsed),
				zap.Int("attempt", attempt))
			break
		}

		raw, err := g.provider.Call(ctx, systemMsg, userPrompt, g.cfg.MaxTokens)
		if err != nil {
			log.Warn("provider call failed",
				zap.Int("attempt", attempt),
				zap.String("provider", g.provider.Name()),
				zap.Error(err))
			continue
		}
		if strings.Contains(raw, gatewaySchemaSentinel) {
			log.Warn("gateway reported missing schema", zap.Int("attempt", attempt))
			continue
		}

		recovered, strategy, ok := recoverPayload(raw)
		if !ok {
			log.Warn("no payload recoverable from response",
				zap.Int("attempt", attempt),
				zap.String("response", logging.TruncateString(raw, 200)))
			continue
		}
		if strategy != "direct" {
			log.Info("recovered payload from malformed response", zap.String("strategy", strategy))
		}

		legacySQL, legacyReport := Repair(recovered.LegacySQL)
		if len(legacyReport.Applied) > 0 {
			log.Info("repaired legacy sql", zap.Strings("rules", legacyReport.Applied))
		}
		prodSQL, prodReport := Repair(recovered.ProdSQL)
		if len(prodReport.Applied) > 0 {
			log.Info("repaired prod sql", zap.Strings("rules", prodReport.Applied))
		}

		if g.cfg.SelfValidate && legacySQL != "" {
			legacySQL = g.selfValidate(ctx, log, legacySQL)
		}

		// Latent defects the repair tables could not clear are systematic,
		// not transient; retrying the provider will not fix them.
		if issues := preflightBoth(legacySQL, prodSQL); len(issues) > 0 {
			log.Warn("preflight rejected generated sql", zap.Strings("issues", issues))
			break
		}

		explanation := recovered.Explanation
		if explanation == "" {
			explanation = "Custom validation query"
		}
		res := Result{
			LegacySQL:   legacySQL,
			ProdSQL:     prodSQL,
			Explanation: explanation,
			Origin:      OriginGenerated,
		}
		if g.store != nil {
			g.store.Put(req, res)
		}
		log.Info("sql generated", zap.Int("attempt", attempt))
		return res
	}

	log.Info("falling back to template query")
	return Fallback(req.LegacyTable, req.ProdTable, req.ValidationRequest)
}

// Summarize asks the provider for a narrative reading of a finished
// validation run. Callers format one line per check; the error return lets
// them fall back to a counts-only summary.
func (g *Generator) Summarize(ctx context.Context, legacyTable, prodTable string, resultLines []string) (string, error) {
	systemMsg, prompt := buildSummaryPrompt(legacyTable, prodTable, resultLines)
	raw, err := g.provider.Call(ctx, systemMsg, prompt, summaryMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// selfValidate asks the provider to audit its own statement and adopts
// the corrected version when the audit finds problems and offers a usable
// fix. An unusable audit never blocks the pipeline; preflight remains the
// real gate.
func (g *Generator) selfValidate(ctx context.Context, log *zap.Logger, sqlQuery string) string {
	systemMsg, prompt := buildValidationPrompt(sqlQuery)
	raw, err := g.provider.Call(ctx, systemMsg, prompt, validationMaxTokens)
	if err != nil {
		log.Warn("self-validation call failed", zap.Error(err))
		return sqlQuery
	}

	v := parseVerdict(raw, sqlQuery)
	if v.IsValid {
		return sqlQuery
	}

	log.Info("self-validation reported issues", zap.Strings("issues", v.Issues))
	if v.CorrectedSQL != "" && v.CorrectedSQL != sqlQuery {
		return v.CorrectedSQL
	}
	return sqlQuery
}

// verdict is the provider's answer to the self-validation checklist.
type verdict struct {
	IsValid      bool
	Issues       []string
	CorrectedSQL string
}

// parseVerdict decodes a self-validation response, tolerating the same
// malformations the recovery pipeline handles. An unparsable response
// counts as an invalid verdict with no usable correction.
func parseVerdict(raw, originalSQL string) verdict {
	content := strings.TrimSpace(stripFences(raw))

	decoded, ok := decodeVerdict(content)
	if !ok {
		if candidate, bounded := boundedCandidate(content); bounded {
			decoded, ok = decodeVerdict(candidate)
		}
	}
	if !ok {
		return verdict{Issues: []string{"validation response unparsable"}, CorrectedSQL: originalSQL}
	}

	v := verdict{
		IsValid:      jsonutil.FlexibleBoolValue(decoded.IsValid),
		Issues:       jsonutil.FlexibleStringSlice(decoded.Issues),
		CorrectedSQL: jsonutil.FlexibleStringValue(decoded.CorrectedSQL),
	}
	if v.CorrectedSQL == "" {
		v.CorrectedSQL = originalSQL
	}
	return v
}

type rawVerdict struct {
	IsValid      json.RawMessage `json:"is_valid"`
	Issues       json.RawMessage `json:"issues"`
	CorrectedSQL json.RawMessage `json:"corrected_sql"`
}

func decodeVerdict(content string) (rawVerdict, bool) {
	var decoded rawVerdict
	if err := json.Unmarshal([]byte(content), &decoded); err != nil || decoded.IsValid == nil {
		return rawVerdict{}, false
	}
	return decoded, true
}

// preflightBoth scans both statements for residual red flags; the prod
// statement is optional.
func preflightBoth(legacySQL, prodSQL string) []string {
	issues := sqlcheck.Preflight(legacySQL)
	if prodSQL != "" {
		for _, issue := range sqlcheck.Preflight(prodSQL) {
			issues = append(issues, "prod: "+issue)
		}
	}
	return issues
}
