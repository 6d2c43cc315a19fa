package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/config"
	"github.com/arcadehub/users-service/internal/infrastructure/bus"
	"github.com/arcadehub/users-service/internal/infrastructure/eventstore"
	"github.com/arcadehub/users-service/pkg/helpers"
)

// App-level container sharing constructed components across packages so the
// router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	esClient    *elasticsearch.Client
	jwtManager  *helpers.JWTManager
	eventStore  *eventstore.PgStore
	publisher   *bus.Publisher
)

func SetConfig(c *config.Config)             { cfg = c }
func GetConfig() *config.Config              { return cfg }
func SetLogger(l *logrus.Logger)             { logger = l }
func GetLogger() *logrus.Logger              { return logger }
func SetPGPool(p *pgxpool.Pool)              { pgPool = p }
func GetPGPool() *pgxpool.Pool               { return pgPool }
func SetRedis(r *redis.Client)               { redisClient = r }
func GetRedis() *redis.Client                { return redisClient }
func SetES(c *elasticsearch.Client)          { esClient = c }
func GetES() *elasticsearch.Client           { return esClient }
func SetJWT(m *helpers.JWTManager)           { jwtManager = m }
func GetJWT() *helpers.JWTManager            { return jwtManager }
func SetEventStore(s *eventstore.PgStore)    { eventStore = s }
func GetEventStore() *eventstore.PgStore     { return eventStore }
func SetPublisher(p *bus.Publisher)          { publisher = p }
func GetPublisher() *bus.Publisher           { return publisher }
