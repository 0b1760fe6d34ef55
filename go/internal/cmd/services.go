package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/bus"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/game"
	"github.com/mcdev12/scatter/go/internal/gateway"
	"github.com/mcdev12/scatter/go/internal/identity"
	"github.com/mcdev12/scatter/go/internal/orchestrator"
	"github.com/mcdev12/scatter/go/internal/repository"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

type Services struct {
	Game         *game.Service
	Orchestrator *orchestrator.Orchestrator
	Connections  *gateway.ConnectionManager
	Bus          *bus.JetStreamPublisher
}

// Identity both resolves and issues player tokens.
type Identity interface {
	identity.Resolver
	identity.Issuer
}

func setupIdentity(config *Config, clock clockwork.Clock) Identity {
	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		log.Warn().Msg("JWT_SECRET not set, player IDs are accepted as tokens")
		return identity.UUIDResolver{}
	}
	return identity.NewJWTResolver(secret, config.Identity.Issuer, config.Identity.TokenTTL, clock)
}

func setupServices(ctx context.Context, config *Config, store repository.Store) (*Services, error) {
	// Wire up dependency injection chain
	// Repository → Scoring/Orchestrator → App → Service
	clock := clockwork.NewRealClock()

	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)
	publishers := events.Fanout{connections}

	var publisher *bus.JetStreamPublisher
	if url := getEnv("NATS_URL", ""); url != "" {
		jsCfg := bus.DefaultJetStreamConfig()
		jsCfg.URL = url
		var err error
		publisher, err = bus.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		publishers = append(publishers, publisher)
	}

	ident := setupIdentity(config, clock)
	engine := scoring.NewEngine(store, config.Scoring)
	orch := orchestrator.NewOrchestrator(store, publishers, ident, engine, clock, config.Orchestrator)
	connections.SetCommandHandler(orch)

	app := game.NewApp(store, orch, engine, ident, clock, config.Game, nil)

	return &Services{
		Game:         game.NewService(app),
		Orchestrator: orch,
		Connections:  connections,
		Bus:          publisher,
	}, nil
}
