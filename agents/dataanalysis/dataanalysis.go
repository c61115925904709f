// Package dataanalysis implements the data-analysis domain agent (spec.md
// §1's "data-analysis" domain collaborator): a tools-namespace agent that
// runs bounded AQL aggregation queries against an ArangoDB collection,
// restricted to a configured allow-list.
package dataanalysis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/envelope"
	"github.com/fractalhq/orcha/toolerr"
)

const (
	defaultEndpoint = "http://localhost:8529"
	defaultDatabase = "orcha"
	defaultMaxRows  = 50
)

// Agent is the ArangoDB-backed data-analysis domain agent.
type Agent struct {
	desc     agent.Descriptor
	endpoint string
	database string
	allowed  map[string]bool
	maxRows  int

	initOnce sync.Once
	initErr  error
	db       arangodb.Database
}

// New builds a dataanalysis agent from its descriptor. Recognized config
// keys: db_uri (Arango coordinator URL), allowed_tables (collection
// allow-list), max_rows (§6).
func New(desc agent.Descriptor) *Agent {
	a := &Agent{
		desc:     desc,
		endpoint: defaultEndpoint,
		database: defaultDatabase,
		maxRows:  defaultMaxRows,
	}
	if v, ok := config.StringValue(desc.Config, "db_uri"); ok && v != "" {
		a.endpoint = v
	}
	if v, ok := config.StringValue(desc.Config, "database"); ok && v != "" {
		a.database = v
	}
	if v, ok := config.IntValue(desc.Config, "max_rows"); ok && v > 0 {
		a.maxRows = v
	}
	if tables, ok := config.StringSliceValue(desc.Config, "allowed_tables"); ok {
		a.allowed = make(map[string]bool, len(tables))
		for _, t := range tables {
			a.allowed[t] = true
		}
	}
	return a
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"query_collection": queryOp{}}
}

// Init opens the Arango connection and resolves the configured database.
// Idempotent and safe for concurrent callers; only the first call connects.
func (a *Agent) Init(ctx context.Context) error {
	a.initOnce.Do(func() {
		endpoint := connection.NewRoundRobinEndpoints([]string{a.endpoint})
		conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))
		client := arangodb.NewClient(conn)

		db, err := client.GetDatabase(ctx, a.database, nil)
		if err != nil {
			a.initErr = toolerr.Wrap("dataanalysis: open database", err)
			return
		}
		a.db = db
	})
	return a.initErr
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	if err := a.Init(ctx); err != nil {
		return envelope.Err(err.Error(), "data_fetch")
	}
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("dataanalysis: no operation %q", opName), "data_fetch")
	}
	return op.Run(ctx, params, ectx, a)
}

// allowedCollection reports whether name may be queried, per the configured
// allow-list. An empty allow-list permits any collection (no restriction
// configured).
func (a *Agent) allowedCollection(name string) bool {
	if len(a.allowed) == 0 {
		return true
	}
	return a.allowed[name]
}

type queryOp struct{}

func (queryOp) Kind() agent.OperationKind { return agent.KindDirect }

func (queryOp) Description() string {
	return "Runs a bounded aggregation query against an allow-listed ArangoDB collection."
}

func (queryOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"collection"},
		"properties": map[string]any{
			"collection": map[string]any{"type": "string"},
			"filter":     map[string]any{"type": "object"},
		},
	}
}

func (queryOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rows": map[string]any{"type": "array"},
		},
	}
}

func (queryOp) Run(ctx context.Context, params map[string]any, _ agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("dataanalysis: unexpected self type", "data_fetch")
	}

	collection, _ := params["collection"].(string)
	if collection == "" {
		return envelope.Err("dataanalysis: missing required param \"collection\"", "data_fetch")
	}
	if !a.allowedCollection(collection) {
		return envelope.Err(fmt.Sprintf("dataanalysis: collection %q is not in allowed_tables", collection), "data_fetch")
	}

	filters, bindVars := buildFilterClause(params["filter"])

	query := fmt.Sprintf(
		"FOR doc IN %s %s LIMIT @max_rows RETURN doc",
		collection, filters,
	)
	bindVars["max_rows"] = a.maxRows

	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return envelope.Err(toolerr.Wrap("dataanalysis: execute query", err).Error(), "data_fetch")
	}
	defer cursor.Close()

	var rows []map[string]any
	for cursor.HasMore() {
		var doc map[string]any
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return envelope.Err(toolerr.Wrap("dataanalysis: read document", err).Error(), "data_fetch")
		}
		rows = append(rows, doc)
	}

	summary := fmt.Sprintf("found %d row(s) in %s", len(rows), collection)
	return envelope.Ok("data_fetch", map[string]any{"rows": rows}, summary)
}

// buildFilterClause turns a flat field->value map into an AQL FILTER clause
// with bound variables, one per field, to avoid string-interpolating values.
func buildFilterClause(filter any) (string, map[string]any) {
	fields, ok := filter.(map[string]any)
	if !ok || len(fields) == 0 {
		return "", map[string]any{}
	}

	var clauses []string
	bindVars := make(map[string]any, len(fields))
	i := 0
	for field, value := range fields {
		bindName := fmt.Sprintf("f%d", i)
		clauses = append(clauses, fmt.Sprintf("doc.%s == @%s", field, bindName))
		bindVars[bindName] = value
		i++
	}
	return "FILTER " + strings.Join(clauses, " AND "), bindVars
}
