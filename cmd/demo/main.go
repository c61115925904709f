// Command demo runs a single invocation of the orchestration engine against
// a fixed question, printing the synthesized final answer and the audit
// trail. It is the minimal end-to-end wiring example: load config, build a
// registry via bootstrap, attach a model client, run Invoke once.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fractalhq/orcha/archive"
	"github.com/fractalhq/orcha/archive/file"
	"github.com/fractalhq/orcha/bootstrap"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/engine"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/model/anthropic"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("agents.yaml", ".env")
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	reg := bootstrap.Registry(cfg)

	ectx, err := execctx.New("List the books written by Pushkin")
	if err != nil {
		fmt.Fprintln(os.Stderr, "execctx:", err)
		os.Exit(1)
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		client, err := anthropic.NewFromAPIKey(apiKey, "claude-sonnet-4-5")
		if err != nil {
			fmt.Fprintln(os.Stderr, "model client:", err)
			os.Exit(1)
		}
		ectx = ectx.WithModelClient("default", client)
	}

	archive.Attach(ctx, ectx, file.New("./archive-out"))

	g := engine.New(reg, engineConfig(cfg))
	ectx, err = g.Invoke(ctx, ectx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invoke:", err)
		os.Exit(1)
	}

	answer, ok := ectx.GetFinalAnswer()
	if !ok {
		fmt.Println("no final answer produced")
		return
	}
	fmt.Println("Final answer:", answer)

	for _, evt := range ectx.History() {
		fmt.Printf("  [%d] %s step=%s data=%v\n", evt.Seq, evt.Type, evt.StepID, evt.Data)
	}
}

func engineConfig(cfg *config.File) engine.Config {
	def := engine.DefaultConfig()
	if cfg == nil {
		return def
	}
	return engine.Config{
		MaxRetries: cfg.MaxRetries(def.MaxRetries),
		LoopBudget: cfg.LoopBudget(def.LoopBudget),
	}
}
