// Package docsearch implements the document-search domain agent (spec.md
// §1's "document-search" domain collaborator): a tools-namespace agent that
// runs full-text queries against a Typesense collection.
package docsearch

import (
	"context"
	"fmt"
	"sync"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/envelope"
	"github.com/fractalhq/orcha/toolerr"
)

const (
	defaultServerURL = "http://localhost:8108"
	defaultMaxHits   = 10
)

// Agent is the Typesense-backed document-search domain agent.
type Agent struct {
	desc       agent.Descriptor
	serverURL  string
	apiKey     string
	collection string
	maxHits    int

	initOnce sync.Once
	client   *typesense.Client
}

// New builds a docsearch agent from its descriptor. Recognized config keys:
// db_uri (Typesense node URL), api_key, collection, max_rows (§6).
func New(desc agent.Descriptor) *Agent {
	a := &Agent{
		desc:       desc,
		serverURL:  defaultServerURL,
		collection: "documents",
		maxHits:    defaultMaxHits,
	}
	if v, ok := config.StringValue(desc.Config, "db_uri"); ok && v != "" {
		a.serverURL = v
	}
	if v, ok := config.StringValue(desc.Config, "api_key"); ok && v != "" {
		a.apiKey = v
	}
	if v, ok := config.StringValue(desc.Config, "collection"); ok && v != "" {
		a.collection = v
	}
	if v, ok := config.IntValue(desc.Config, "max_rows"); ok && v > 0 {
		a.maxHits = v
	}
	return a
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"search_documents": searchOp{}}
}

// Init lazily constructs the Typesense client. Idempotent and safe for
// concurrent callers; only the first call does work.
func (a *Agent) Init(_ context.Context) error {
	a.initOnce.Do(func() {
		a.client = typesense.NewClient(
			typesense.WithServer(a.serverURL),
			typesense.WithAPIKey(a.apiKey),
		)
	})
	return nil
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	if err := a.Init(ctx); err != nil {
		return envelope.Err(toolerr.Wrap("docsearch: connect", err).Error(), "data_fetch")
	}
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("docsearch: no operation %q", opName), "data_fetch")
	}
	return op.Run(ctx, params, ectx, a)
}

type searchOp struct{}

func (searchOp) Kind() agent.OperationKind { return agent.KindDirect }

func (searchOp) Description() string {
	return "Runs a full-text query against the configured Typesense collection."
}

func (searchOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]any{
			"query":    map[string]any{"type": "string"},
			"query_by": map[string]any{"type": "string"},
			"max_hits": map[string]any{"type": "integer"},
		},
	}
}

func (searchOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hits": map[string]any{"type": "array"},
		},
	}
}

func (searchOp) Run(ctx context.Context, params map[string]any, _ agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("docsearch: unexpected self type", "data_fetch")
	}

	query, _ := params["query"].(string)
	if query == "" {
		return envelope.Err("docsearch: missing required param \"query\"", "data_fetch")
	}
	queryBy, _ := params["query_by"].(string)
	if queryBy == "" {
		queryBy = "title,body"
	}
	maxHits := a.maxHits
	if v, ok := config.IntValue(params, "max_hits"); ok && v > 0 {
		maxHits = v
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String(queryBy),
		PerPage: pointer.Int(maxHits),
	}

	resp, err := a.client.Collection(a.collection).Documents().Search(ctx, searchParams)
	if err != nil {
		return envelope.Err(toolerr.Wrap("docsearch: search", err).Error(), "data_fetch")
	}

	hits := make([]map[string]any, 0)
	if resp != nil && resp.Hits != nil {
		for _, hit := range *resp.Hits {
			if hit.Document == nil {
				continue
			}
			hits = append(hits, *hit.Document)
		}
	}

	summary := fmt.Sprintf("found %d document(s) matching %q", len(hits), query)
	return envelope.Ok("data_fetch", map[string]any{"hits": hits}, summary)
}
