package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
)

// ddlBasePath is where the lake repository keeps production table configs.
const ddlBasePath = "catalog/config/prod"

// ddlSnippetLimit caps how much raw DDL text is echoed into prompt context.
const ddlSnippetLimit = 500

// TableDDL is a table definition located in the lake repository.
type TableDDL struct {
	TableName string
	Path      string
	Content   string
	Columns   []Column
}

// RepoContentsAPI and CodeSearchAPI are the slices of the GitHub client the
// fetcher depends on.
type RepoContentsAPI interface {
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

type CodeSearchAPI interface {
	Code(ctx context.Context, query string, opts *github.SearchOptions) (*github.CodeSearchResult, *github.Response, error)
}

// DDLFetcher locates CREATE TABLE definitions in a GitHub repository and
// parses them into column metadata. Fetched files are memoized per path for
// the lifetime of the fetcher, so repeated lookups for the same suite of
// tables cost one API round trip each.
type DDLFetcher struct {
	contents RepoContentsAPI
	search   CodeSearchAPI
	owner    string
	repo     string
	branch   string
	logger   *zap.Logger

	mu   sync.Mutex
	memo map[string]string
}

// NewDDLFetcher wires a fetcher against the GitHub API. The token may be
// empty for public repositories.
func NewDDLFetcher(owner, repo, branch, token string, logger *zap.Logger) *DDLFetcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return newDDLFetcher(client.Repositories, client.Search, owner, repo, branch, logger)
}

func newDDLFetcher(contents RepoContentsAPI, search CodeSearchAPI, owner, repo, branch string, logger *zap.Logger) *DDLFetcher {
	return &DDLFetcher{
		contents: contents,
		search:   search,
		owner:    owner,
		repo:     repo,
		branch:   branch,
		logger:   logger.Named("ddl"),
		memo:     make(map[string]string),
	}
}

// SearchTableDDL locates the file defining table, trying the conventional
// path layouts first and falling back to code search. The boolean is false
// when no definition could be found; lookup failures are logged, never
// returned, because schema context is an enrichment rather than a
// prerequisite.
func (f *DDLFetcher) SearchTableDDL(ctx context.Context, table string) (TableDDL, bool) {
	database := ""
	name := table
	if idx := strings.Index(table, "."); idx >= 0 {
		database, name = table[:idx], table[idx+1:]
	}

	path, content, ok := f.fetchByPattern(ctx, database, name)
	if !ok {
		path, content, ok = f.searchRepository(ctx, name)
	}
	if !ok {
		f.logger.Debug("no ddl found", zap.String("table", table))
		return TableDDL{}, false
	}

	f.logger.Info("table ddl located",
		zap.String("table", table),
		zap.String("path", path))
	return TableDDL{
		TableName: table,
		Path:      path,
		Content:   content,
		Columns:   parseDDLColumns(content, name),
	}, true
}

// EnhancedContext renders the richest schema context available: the GitHub
// DDL when it parses, otherwise the fallback catalog columns, otherwise a
// no-information marker.
func (f *DDLFetcher) EnhancedContext(ctx context.Context, table string, fallback []Column) string {
	if ddl, ok := f.SearchTableDDL(ctx, table); ok && len(ddl.Columns) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (from GitHub DDL):\n", table)
		for _, col := range ddl.Columns {
			fmt.Fprintf(&b, "  - %s (%s)", col.Name, col.Type)
			if col.Comment != "" {
				b.WriteString(" -- " + col.Comment)
			}
			b.WriteString("\n")
		}
		snippet := ddl.Content
		if len(snippet) > ddlSnippetLimit {
			snippet = snippet[:ddlSnippetLimit] + "..."
		}
		fmt.Fprintf(&b, "\nDDL Context:\n%s\n", snippet)
		return b.String()
	}

	if len(fallback) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (from Athena/Glue):\n", table)
		for _, col := range fallback {
			fmt.Fprintf(&b, "  - %s (%s)\n", col.Name, col.Type)
		}
		return b.String()
	}

	return fmt.Sprintf("%s: No schema information available", table)
}

// candidatePaths lists the places a table's DDL conventionally lives,
// database-scoped locations before repository-root ones.
func candidatePaths(database, table string) []string {
	underscore := strings.ReplaceAll(table, ".", "_")
	var paths []string

	if database != "" {
		dir := ddlBasePath + "/" + database
		paths = append(paths,
			dir+"/"+table+".sql",
			dir+"/"+table+".ddl",
			dir+"/"+table+"_ddl.sql",
			dir+"/"+table+"_schema.sql",
		)
		if underscore != table {
			paths = append(paths, dir+"/"+underscore+".sql", dir+"/"+underscore+".ddl")
		}
	}

	paths = append(paths,
		ddlBasePath+"/"+table+".sql",
		ddlBasePath+"/"+table+".ddl",
		ddlBasePath+"/"+table+"_ddl.sql",
		ddlBasePath+"/"+table+"_schema.sql",
	)
	if underscore != table {
		paths = append(paths, ddlBasePath+"/"+underscore+".sql", ddlBasePath+"/"+underscore+".ddl")
	}
	return paths
}

func (f *DDLFetcher) fetchByPattern(ctx context.Context, database, table string) (string, string, bool) {
	for _, path := range candidatePaths(database, table) {
		if content, ok := f.fetchFile(ctx, path); ok {
			return path, content, true
		}
	}
	return "", "", false
}

// fetchFile reads one file through the contents API. Only successful reads
// are memoized so a transient failure can be retried on the next lookup.
func (f *DDLFetcher) fetchFile(ctx context.Context, path string) (string, bool) {
	f.mu.Lock()
	if content, ok := f.memo[path]; ok {
		f.mu.Unlock()
		return content, true
	}
	f.mu.Unlock()

	file, _, _, err := f.contents.GetContents(ctx, f.owner, f.repo, path,
		&github.RepositoryContentGetOptions{Ref: f.branch})
	if err != nil || file == nil || file.GetType() != "file" {
		return "", false
	}
	content, err := file.GetContent()
	if err != nil {
		f.logger.Debug("could not decode content",
			zap.String("path", path),
			zap.Error(err))
		return "", false
	}

	f.mu.Lock()
	f.memo[path] = content
	f.mu.Unlock()
	return content, true
}

// searchRepository falls back to GitHub code search when no conventional
// path matched. The first query looks for the CREATE TABLE statement, the
// second for any SQL file mentioning the table.
func (f *DDLFetcher) searchRepository(ctx context.Context, table string) (string, string, bool) {
	queries := []string{
		fmt.Sprintf("CREATE TABLE %s repo:%s/%s path:%s", table, f.owner, f.repo, ddlBasePath),
		fmt.Sprintf("%s repo:%s/%s path:%s extension:sql", table, f.owner, f.repo, ddlBasePath),
	}

	for i, query := range queries {
		result, _, err := f.search.Code(ctx, query, nil)
		if err != nil {
			f.logger.Debug("code search failed",
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		for _, item := range result.CodeResults {
			path := item.GetPath()
			if !strings.HasPrefix(path, ddlBasePath) {
				continue
			}
			// The second query already filters on extension server-side.
			if i == 0 && !strings.HasSuffix(path, ".sql") && !strings.HasSuffix(path, ".ddl") {
				continue
			}
			if content, ok := f.fetchFile(ctx, path); ok && containsTableDefinition(content, table) {
				return path, content, true
			}
		}
	}
	return "", "", false
}

// containsTableDefinition reports whether content defines table, either in a
// CREATE TABLE statement (full or bare name, optionally backticked) or in a
// "Table:" marker comment.
func containsTableDefinition(content, table string) bool {
	bare := table
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		bare = table[idx+1:]
	}

	patterns := []string{
		`(?im)CREATE\s+(?:EXTERNAL\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(?:\w+\.)?` + regexp.QuoteMeta(table) + `\s*\(`,
		"(?im)CREATE\\s+(?:EXTERNAL\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?`?(?:\\w+\\.)?" + regexp.QuoteMeta(bare) + "`?\\s*\\(",
		`(?im)(?:--\s*)?Table:\s*(?:\w+\.)?` + regexp.QuoteMeta(bare) + `\b`,
	}
	for _, pattern := range patterns {
		if regexp.MustCompile(pattern).MatchString(content) {
			return true
		}
	}
	return false
}

// parseDDLColumns extracts column definitions from raw DDL text. It prefers
// the CREATE TABLE statement for the named table, accepts any CREATE TABLE
// when that is absent, and as a last resort reads a "-- Columns:" comment
// block.
func parseDDLColumns(content, name string) []Column {
	section, ok := columnsSection(content, name)
	if !ok {
		section, ok = columnsSection(content, "")
	}
	if ok {
		if columns := parseColumnDefs(section); len(columns) > 0 {
			return columns
		}
	}
	return parseColumnComments(content)
}

// columnsSection returns the text inside the balanced parentheses following
// the CREATE TABLE header for name; an empty name matches any table.
// Counting parentheses rather than matching non-greedily keeps
// parameterized types like decimal(10,2) intact.
func columnsSection(content, name string) (string, bool) {
	namePattern := `[\w.]+`
	if name != "" {
		namePattern = `(?:\w+\.)?` + regexp.QuoteMeta(name)
	}
	header := regexp.MustCompile(
		`(?is)CREATE\s+(?:EXTERNAL\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
			"`?" + namePattern + "`?" + `\s*\(`)

	loc := header.FindStringIndex(content)
	if loc == nil {
		return "", false
	}

	depth := 1
	for i := loc[1]; i < len(content); i++ {
		switch content[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return content[loc[1]:i], true
			}
		}
	}
	// Truncated DDL: take what is there.
	return content[loc[1]:], true
}

var (
	columnCommentPattern = regexp.MustCompile(`(?i)\s+COMMENT\s+(?:'([^']*)'|"([^"]*)")\s*$`)
	columnSuffixPattern  = regexp.MustCompile(`(?i)\s+(?:NOT\s+NULL|NULL|DEFAULT\s+.*)$`)

	constraintKeywords = map[string]bool{
		"PRIMARY": true, "FOREIGN": true, "CONSTRAINT": true,
		"UNIQUE": true, "KEY": true, "INDEX": true, "CHECK": true,
	}
)

func parseColumnDefs(section string) []Column {
	var columns []Column
	seen := make(map[string]bool)

	for _, def := range splitTopLevel(section) {
		def = strings.TrimSpace(def)
		if def == "" || isConstraintDef(def) {
			continue
		}

		comment := ""
		if m := columnCommentPattern.FindStringSubmatch(def); m != nil {
			comment = m[1]
			if comment == "" {
				comment = m[2]
			}
			def = strings.TrimSpace(def[:len(def)-len(m[0])])
		}

		name, rest := splitColumnName(def)
		if name == "" || rest == "" {
			continue
		}
		colType := strings.TrimSpace(columnSuffixPattern.ReplaceAllString(rest, ""))
		if colType == "" {
			continue
		}

		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		columns = append(columns, Column{Name: name, Type: colType, Comment: comment})
	}
	return columns
}

// splitTopLevel splits a column list on commas outside parentheses.
func splitTopLevel(section string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(section); i++ {
		switch section[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, section[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, section[start:])
}

func isConstraintDef(def string) bool {
	fields := strings.Fields(def)
	return len(fields) == 0 || constraintKeywords[strings.ToUpper(fields[0])]
}

// splitColumnName separates the column name, backticked or bare, from the
// remainder of its definition.
func splitColumnName(def string) (string, string) {
	if strings.HasPrefix(def, "`") {
		end := strings.Index(def[1:], "`")
		if end < 0 {
			return "", ""
		}
		return def[1 : 1+end], strings.TrimSpace(def[2+end:])
	}
	fields := strings.Fields(def)
	if len(fields) < 2 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

var (
	columnCommentBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)--\s*Columns?\s*:?\s*\n((?:--.*\n?)*)`),
		regexp.MustCompile(`(?is)/\*\s*Columns?\s*:?\s*(.*?)\*/`),
	}
	commentColumnLine = regexp.MustCompile(`^(\w+)\s+(\S+)\s*(.*)$`)
)

// parseColumnComments reads columns out of a documentation block, for DDL
// files that describe the schema in comments instead of a statement.
func parseColumnComments(content string) []Column {
	for _, block := range columnCommentBlocks {
		m := block.FindStringSubmatch(content)
		if m == nil {
			continue
		}

		var columns []Column
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
			lm := commentColumnLine.FindStringSubmatch(line)
			if lm == nil {
				continue
			}
			columns = append(columns, Column{
				Name:    lm[1],
				Type:    lm[2],
				Comment: strings.TrimSpace(lm[3]),
			})
		}
		if len(columns) > 0 {
			return columns
		}
	}
	return nil
}
