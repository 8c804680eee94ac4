package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/models"
)

const defaultVoteTimeout = 30 * time.Second

type personaRunner struct {
	name string
	run  compose.Runnable[map[string]any, models.AgentVote]
}

// Panel asks every persona about the same situation and collects one vote
// from each, in persona order.
type Panel struct {
	runners []personaRunner
	timeout time.Duration
	handler callbacks.Handler
	log     zerolog.Logger
}

func NewPanel(ctx context.Context, cm model.ChatModel, personas []Persona, timeout time.Duration, log zerolog.Logger) (*Panel, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if timeout <= 0 {
		timeout = defaultVoteTimeout
	}
	log = log.With().Str("component", "panel").Logger()

	p := &Panel{
		timeout: timeout,
		handler: NewLogHandler(log),
		log:     log,
	}
	for _, persona := range personas {
		run, err := newPersonaGraph(ctx, cm, persona)
		if err != nil {
			return nil, fmt.Errorf("build persona %s: %w", persona.Name, err)
		}
		p.runners = append(p.runners, personaRunner{name: persona.Name, run: run})
	}
	return p, nil
}

func newPersonaGraph(ctx context.Context, cm model.ChatModel, persona Persona) (compose.Runnable[map[string]any, models.AgentVote], error) {
	name := persona.Name
	classify := func(_ context.Context, msg *schema.Message) (models.AgentVote, error) {
		text := ""
		if msg != nil {
			text = msg.Content
		}
		return models.AgentVote{Agent: name, Action: Classify(text), Explanation: text}, nil
	}

	g := compose.NewGraph[map[string]any, models.AgentVote]()
	_ = g.AddChatTemplateNode(consts.NodeTemplate, prompt.FromMessages(schema.FString, schema.UserMessage(persona.Template)))
	_ = g.AddChatModelNode(consts.NodeModel, cm)
	_ = g.AddLambdaNode(consts.NodeClassify, compose.InvokableLambda(classify))
	_ = g.AddEdge(compose.START, consts.NodeTemplate)
	_ = g.AddEdge(consts.NodeTemplate, consts.NodeModel)
	_ = g.AddEdge(consts.NodeModel, consts.NodeClassify)
	_ = g.AddEdge(consts.NodeClassify, compose.END)
	return g.Compile(ctx, compose.WithGraphName(name))
}

func (p *Panel) Names() []string {
	names := make([]string, len(p.runners))
	for i, r := range p.runners {
		names[i] = r.name
	}
	return names
}

// Vote runs all personas concurrently. A persona that fails or times out
// votes hold with the error as its explanation.
func (p *Panel) Vote(ctx context.Context, symbol, summary string) []models.AgentVote {
	votes := make([]models.AgentVote, len(p.runners))
	input := map[string]any{"data": summary, "symbol": symbol}

	var wg sync.WaitGroup
	for i, r := range p.runners {
		wg.Add(1)
		go func(i int, r personaRunner) {
			defer wg.Done()
			votes[i] = p.ask(ctx, r, symbol, input)
		}(i, r)
	}
	wg.Wait()

	for _, v := range votes {
		metrics.VotesTotal.WithLabelValues(v.Agent, string(v.Action)).Inc()
	}
	return votes
}

func (p *Panel) ask(ctx context.Context, r personaRunner, symbol string, input map[string]any) (vote models.AgentVote) {
	defer func() {
		if rec := recover(); rec != nil {
			vote = p.failed(r.name, symbol, fmt.Errorf("panic: %v", rec))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := r.run.Invoke(callCtx, input, compose.WithCallbacks(p.handler))
	if err != nil {
		return p.failed(r.name, symbol, err)
	}
	out.Agent = r.name
	return out
}

func (p *Panel) failed(name, symbol string, err error) models.AgentVote {
	metrics.ExternalFailures.WithLabelValues("llm").Inc()
	p.log.Warn().Err(err).Str("agent", name).Str("symbol", symbol).Msg("persona vote failed, defaulting to hold")
	return models.AgentVote{
		Agent:       name,
		Action:      models.ActionHold,
		Explanation: fmt.Sprintf("%s unavailable: %v", name, err),
	}
}
