//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/foundation"
)

//go:generate wire

// initializeApplication builds the application kernel from a loaded config.
func initializeApplication(cfg *config.Config, providers foundation.AppProviders) (*foundation.Application, error) {
	wire.Build(foundation.ProviderSet)
	return nil, nil
}
