package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(providePolicy),
)

func providePolicy(cfg Config) (*PolicyHolder, error) {
	return NewPolicyHolder(cfg.PolicyFile)
}
