package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/avi3tal/stepflow/pkg/agent"
	"github.com/avi3tal/stepflow/pkg/declarative"
	"github.com/avi3tal/stepflow/pkg/executor"
)

const definition = `
name: shouting-pipeline
steps:
  - name: trim
    agent: trimmer
  - name: shout
    agent: upper
    after: [trim]
    retries: 1
`

type Text struct {
	Text string `json:"text"`
}

func textAgent(fn func(string) string) agent.Factory {
	return func() agent.Agent {
		return &funcAgent{
			Base: agent.NewBase(agent.Input[Text](), agent.Output[Text]()),
			fn:   fn,
		}
	}
}

type funcAgent struct {
	agent.Base
	fn func(string) string
}

func (a *funcAgent) Call(_ context.Context, input any) (any, error) {
	return Text{Text: a.fn(input.(Text).Text)}, nil
}

func main() {
	registry := declarative.NewRegistry()
	if err := registry.Register("trimmer", textAgent(strings.TrimSpace)); err != nil {
		log.Fatal(err)
	}
	if err := registry.Register("upper", textAgent(strings.ToUpper)); err != nil {
		log.Fatal(err)
	}

	def, err := declarative.NewYAMLLoader().LoadBytes([]byte(definition), "yaml")
	if err != nil {
		log.Fatal(err)
	}
	compiled, err := declarative.Compile(def, registry)
	if err != nil {
		log.Fatal(err)
	}

	result, err := executor.New(compiled).Run(context.Background(), Text{Text: "  quiet words  "})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.StepResults["shout"].Output.(Text).Text)
}
