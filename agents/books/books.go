// Package books implements the books-library domain agent used throughout
// spec.md's worked examples (§8: "List the books written by Pushkin"). It is
// a tools-namespace agent storing one Redis set per author, keyed
// "books:author:<name>", whose members are book titles.
package books

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/agtools"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/envelope"
	"github.com/fractalhq/orcha/toolerr"
)

const defaultAddr = "localhost:6379"

// Agent is the Redis-backed books-library domain agent.
type Agent struct {
	desc agent.Descriptor
	addr string

	initOnce sync.Once
	initErr  error
	client   *redis.Client
}

// New builds a books agent from its descriptor, reading the recognized
// db_uri config key as the Redis address (spec.md §6).
func New(desc agent.Descriptor) *Agent {
	addr := defaultAddr
	if v, ok := config.StringValue(desc.Config, "db_uri"); ok && v != "" {
		addr = v
	}
	return &Agent{desc: desc, addr: addr}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"list_books": listBooksOp{}}
}

// Init opens the Redis connection. It is idempotent and safe to call
// concurrently; only the first call does any work.
func (a *Agent) Init(_ context.Context) error {
	a.initOnce.Do(func() {
		opts, err := redis.ParseURL(a.addr)
		if err != nil {
			// db_uri wasn't a redis:// URL; fall back to treating it as a
			// bare host:port.
			opts = &redis.Options{Addr: a.addr}
		}
		a.client = redis.NewClient(opts)
	})
	return a.initErr
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	if err := a.Init(ctx); err != nil {
		return envelope.Err(toolerr.Wrap("books: connect", err).Error(), "data_fetch")
	}
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("books: no operation %q", opName), "data_fetch")
	}
	return op.Run(ctx, params, ectx, a)
}

type listBooksOp struct{}

func (listBooksOp) Kind() agent.OperationKind { return agent.KindDirect }

func (listBooksOp) Description() string {
	return "Lists the titles of books written by the given author."
}

// listBooksParams is reflected into ParamsSchema via agtools.SchemaOf rather
// than a hand-written map literal.
type listBooksParams struct {
	Author string `json:"author" jsonschema:"required"`
}

// listBooksOutputs is reflected into OutputsSchema via agtools.SchemaOf.
type listBooksOutputs struct {
	Titles []string `json:"titles"`
}

func (listBooksOp) ParamsSchema() map[string]any { return agtools.SchemaOf[listBooksParams]() }

func (listBooksOp) OutputsSchema() map[string]any { return agtools.SchemaOf[listBooksOutputs]() }

func (listBooksOp) Run(ctx context.Context, params map[string]any, _ agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("books: unexpected self type", "data_fetch")
	}

	author, _ := params["author"].(string)
	if author == "" {
		return envelope.Err("books: missing required param \"author\"", "data_fetch")
	}

	titles, err := a.client.SMembers(ctx, authorKey(author)).Result()
	if err != nil {
		return envelope.Err(toolerr.Wrap("books: query author", err).Error(), "data_fetch")
	}

	summary := fmt.Sprintf("found %d book(s) by %s", len(titles), author)
	return envelope.Ok("data_fetch", map[string]any{"titles": titles}, summary)
}

func authorKey(author string) string {
	return "books:author:" + author
}
