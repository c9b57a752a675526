package main

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avi3tal/stepflow/pkg/agent"
	"github.com/avi3tal/stepflow/pkg/executor"
	"github.com/avi3tal/stepflow/pkg/workflow"
)

// Two-step LLM pipeline: draft an outline, then expand it into prose. Each
// step is an LLMAgent; the executor retries transient generation failures
// with exponential backoff.
func main() {
	llm, err := openai.New()
	if err != nil {
		log.Fatal(err)
	}

	newDrafter := func() agent.Agent {
		return agent.NewLLMAgent(llm,
			agent.WithSystemPrompt("Produce a terse bullet outline for the given topic."))
	}
	newWriter := func() agent.Agent {
		return agent.NewLLMAgent(llm,
			agent.Chained(),
			agent.WithSystemPrompt("Expand the given outline into two paragraphs of prose."))
	}

	def, err := workflow.Define("blog-draft", func(b *workflow.Builder) {
		b.Step("outline", newDrafter).
			Step("prose", newWriter, workflow.After("outline"), workflow.Retries(2))
	})
	if err != nil {
		log.Fatal(err)
	}

	exec := executor.New(def, executor.WithRetries(1))
	result, err := exec.Run(context.Background(), agent.Prompt{Text: "why workflow engines persist state"})
	if err != nil {
		log.Fatal(err)
	}
	if !result.Success {
		log.Fatalf("failed at %s: %s", result.FailedStep, result.ErrorMessage)
	}

	fmt.Println(result.StepResults["prose"].Output.(agent.Completion).Text)
}
