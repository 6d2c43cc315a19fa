package router

import (
	"github.com/arcadehub/users-service/internal/application"
	"github.com/arcadehub/users-service/internal/container"
	pginfra "github.com/arcadehub/users-service/internal/infrastructure/postgres"
	handlers "github.com/arcadehub/users-service/internal/interface/http"
	"github.com/arcadehub/users-service/internal/router/modules"
)

// InitModules builds all feature modules from container singletons and
// registers them with the router registry. Called once at startup.
func InitModules(r *Registry) {
	repo := pginfra.NewAccountRepository(container.GetPGPool())

	svc := application.NewAccountService(
		repo,
		container.GetEventStore(),
		container.GetPublisher(),
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		container.GetConfig().ESAccountsIndex,
	)

	handler := handlers.NewAccountHandler(svc, container.GetLogger())
	r.Add(modules.NewAccountModule(handler, container.GetJWT()))
}
