package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/avi3tal/stepflow/pkg/agent"
	"github.com/avi3tal/stepflow/pkg/executor"
	"github.com/avi3tal/stepflow/pkg/runstore"
	"github.com/avi3tal/stepflow/pkg/workflow"
)

type Text struct {
	Text string `json:"text"`
}

type uppercase struct{ agent.Base }

func newUppercase() agent.Agent {
	return &uppercase{Base: agent.NewBase(agent.Input[Text](), agent.Output[Text]())}
}

func (a *uppercase) Call(_ context.Context, input any) (any, error) {
	return Text{Text: strings.ToUpper(input.(Text).Text)}, nil
}

type wordCount struct{ agent.Base }

func newWordCount() agent.Agent {
	return &wordCount{Base: agent.NewBase(agent.Input[Text](), agent.Output[Text]())}
}

func (a *wordCount) Call(_ context.Context, input any) (any, error) {
	text := input.(Text).Text
	return Text{Text: fmt.Sprintf("%d words", len(strings.Fields(text)))}, nil
}

type combine struct{ agent.Base }

func newCombine() agent.Agent {
	return &combine{Base: agent.NewBase(agent.Input[agent.MergedInput](), agent.Output[Text]())}
}

func (a *combine) Call(_ context.Context, input any) (any, error) {
	merged := input.(agent.MergedInput)
	upper := merged.Outputs["shout"].(Text).Text
	count := merged.Outputs["count"].(Text).Text
	return Text{Text: upper + " (" + count + ")"}, nil
}

func main() {
	def, err := workflow.Define("report", func(b *workflow.Builder) {
		b.Step("shout", newUppercase).
			Step("count", newWordCount).
			Step("summary", newCombine, workflow.After("shout", "count"))
	})
	if err != nil {
		log.Fatal(err)
	}
	def.Print()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}

	exec := executor.New(def,
		executor.WithRetries(2),
		executor.WithStore(runstore.NewFileStore("runs")),
		executor.WithLogger(logger),
	)

	result, err := exec.Run(context.Background(), Text{Text: "hello durable workflows"})
	if err != nil {
		log.Fatal(err)
	}
	if !result.Success {
		log.Fatalf("workflow failed at %s: %s", result.FailedStep, result.ErrorMessage)
	}

	fmt.Printf("\nsummary: %s\n", result.StepResults["summary"].Output.(Text).Text)
	fmt.Printf("took %.3fs\n", result.Duration.Seconds())
}
