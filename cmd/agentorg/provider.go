package main

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentorg/config"
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/model"
	"github.com/hupe1980/agentorg/model/anthropic"
	"github.com/hupe1980/agentorg/model/openai"
	"github.com/hupe1980/agentorg/reasoner"
)

// heuristicScript configures the offline reasoner from command line flags.
type heuristicScript struct {
	sops      map[string]string
	questions map[string]string
}

// buildReasoner creates the reasoning capability selected by the settings.
// Model backed reasoners draw their calls from limiter.
func buildReasoner(s *config.Settings, script heuristicScript, limiter *core.CallLimiter, logger logging.Logger) (core.Reasoner, error) {
	var m model.Model
	switch s.Provider.Name {
	case "heuristic":
		return reasoner.NewHeuristic(func(o *reasoner.HeuristicOptions) {
			o.SOPs = script.sops
			o.Questions = script.questions
		}), nil
	case "anthropic", "bedrock":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if s.Provider.Model != "" {
				o.Model = anthropicsdk.Model(s.Provider.Model)
			}
			o.Temperature = s.Provider.Temperature
			o.MaxTokens = s.Provider.MaxTokens
			o.APIKey = s.Provider.APIKey
			o.Bedrock = s.Provider.Name == "bedrock"
			o.AWSRegion = s.Provider.AWSRegion
			o.AWSProfile = s.Provider.AWSProfile
		})
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if s.Provider.Model != "" {
				o.Model = s.Provider.Model
			}
			o.Temperature = s.Provider.Temperature
			o.MaxCompletionTokens = s.Provider.MaxTokens
			o.APIKey = s.Provider.APIKey
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider.Name)
	}

	return reasoner.NewModel(m, func(o *reasoner.ModelOptions) {
		o.Limiter = limiter
		o.Logger = logger
	}), nil
}
