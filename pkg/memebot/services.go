package memebot

import "fmt"

// Canonical service registry keys. Modules resolve dependencies by these
// names during OnRegister.
const (
	// ServiceLogger is the shared *slog.Logger.
	ServiceLogger = "memebot.logger"
	// ServiceMessageSender delivers outbound chat messages.
	ServiceMessageSender = "memebot.message_sender"
	// ServiceMemeRegistry is the meme registry and command resolver.
	ServiceMemeRegistry = "memebot.meme_registry"
	// ServiceCitizenLedger is the citizen registry and vote ledger.
	ServiceCitizenLedger = "memebot.citizen_ledger"
	// ServiceVotingEngine applies ballots and resolves archive transitions.
	ServiceVotingEngine = "memebot.voting_engine"
	// ServiceStatsAggregator accumulates pending play statistics.
	ServiceStatsAggregator = "memebot.stats_aggregator"
	// ServiceAssetProducer produces audio assets from source references.
	ServiceAssetProducer = "memebot.asset_producer"
	// ServiceAssetStore removes produced audio assets.
	ServiceAssetStore = "memebot.asset_store"
	// ServiceAudioPlayer plays audio assets into voice channels.
	ServiceAudioPlayer = "memebot.audio_player"
	// ServiceCommandCatalog lists registered commands for help rendering.
	ServiceCommandCatalog = "memebot.command_catalog"
	// ServiceMetrics is the prometheus metrics recorder.
	ServiceMetrics = "memebot.metrics"
)

// ServiceRegistry provides runtime dependency injection to modules and drivers.
type ServiceRegistry interface {
	// Register binds a singleton service value to a stable name.
	Register(name string, service any) error
	// Resolve returns a registered service by name.
	Resolve(name string) (any, error)
}

// ResolveAs resolves a service and casts it to the requested type.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var zero T

	service, err := registry.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve service %s: %w", name, err)
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return typed, nil
}
