package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/config"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	root := newRootCommand(cliDeps{
		loadConfig: config.Load,
		newFactory: func(cfg config.Config) ai.Factory {
			return ai.NewFactory(ai.FactoryConfig{
				GeminiModel: cfg.GeminiModel,
				OpenAIModel: cfg.OpenAIModel,
				Logger:      logger,
			})
		},
		logger: logger,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
