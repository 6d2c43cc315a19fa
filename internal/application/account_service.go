// Package application orchestrates account commands: it validates against
// the read model, appends to the event store and hands published copies to
// the bus. Correlation ids are threaded explicitly through every call.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/domain/entity"
	"github.com/arcadehub/users-service/internal/domain/event"
	"github.com/arcadehub/users-service/internal/domain/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrNotFound           = repository.ErrNotFound
)

// EventStore is the slice of the event store the command side depends on.
type EventStore interface {
	Append(ctx context.Context, aggregateID string, evt event.Event, expectedVersion int, correlationID string) error
	GetEvents(ctx context.Context, aggregateID string) ([]event.Event, error)
	MarkDispatched(ctx context.Context, aggregateID string, version int) error
}

// EventPublisher pushes a published copy of an event onto the bus.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.Event, subject, correlationID string) error
}

// TokenIssuer is the external token-issuance collaborator.
type TokenIssuer interface {
	CreateToken(a *entity.Account) (token string, expiresAt time.Time, err error)
}

// AccountService is the command handler for the users aggregate.
type AccountService struct {
	Repo    repository.AccountRepository
	Store   EventStore
	Pub     EventPublisher
	Tokens  TokenIssuer
	Redis   *redis.Client
	Logger  *logrus.Logger
	ES      *elasticsearch.Client
	ESIndex string
}

func NewAccountService(repo repository.AccountRepository, store EventStore, pub EventPublisher, tokens TokenIssuer, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esIndex string) *AccountService {
	return &AccountService{
		Repo:    repo,
		Store:   store,
		Pub:     pub,
		Tokens:  tokens,
		Redis:   rdb,
		Logger:  logger,
		ES:      es,
		ESIndex: esIndex,
	}
}

type AccountResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Profile string `json:"profile"`
	Active  bool   `json:"active"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toResponse(a *entity.Account) *AccountResponse {
	return &AccountResponse{
		ID:      a.ID,
		Name:    a.Name,
		Email:   a.Email,
		Profile: a.Profile.String(),
		Active:  a.Active,
	}
}

// CreateAccount registers a new account. The email pre-check runs against
// the eventually consistent read model and is best effort; the definitive
// record is the AccountCreated event appended at expected version 0.
func (s *AccountService) CreateAccount(ctx context.Context, name, password, email, correlationID string) (*AccountResponse, error) {
	exists, err := s.Repo.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	acc, err := entity.NewAccount(name, password, email, entity.ProfileCommon)
	if err != nil {
		return nil, err
	}

	evt := event.AccountCreated{
		ID:       acc.ID,
		Name:     acc.Name,
		Password: acc.Password,
		Email:    acc.Email,
		Profile:  acc.Profile.String(),
		Active:   acc.Active,
	}
	if err := s.Store.Append(ctx, acc.ID, evt, 0, correlationID); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, evt, 1, correlationID); err != nil {
		return nil, err
	}
	return toResponse(acc), nil
}

// Authenticate verifies credentials, issues a token and records the login
// as a UserAuthenticated event. An inactive account is reported distinctly
// from a bad password.
func (s *AccountService) Authenticate(ctx context.Context, email, password, ip, device, correlationID string) (*AuthResponse, error) {
	acc, err := s.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}
	if !acc.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !acc.Active {
		return nil, ErrInactiveAccount
	}

	token, expiresAt, err := s.Tokens.CreateToken(acc)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	// Read the version freshly from the store so the optimistic check
	// stays meaningful under concurrent logins.
	current, err := s.currentVersion(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	evt := event.UserAuthenticated{ID: acc.ID, Name: acc.Name, IP: ip, Device: device}
	if err := s.Store.Append(ctx, acc.ID, evt, current, correlationID); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, evt, current+1, correlationID); err != nil {
		return nil, err
	}

	s.recordSession(ctx, acc, expiresAt)
	return &AuthResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// RemoveAccount appends an AccountDeleted event at the aggregate's current
// version. The read-model row disappears once the consumer projects it.
func (s *AccountService) RemoveAccount(ctx context.Context, id, correlationID string) error {
	acc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	current, err := s.currentVersion(ctx, acc.ID)
	if err != nil {
		return err
	}
	evt := event.AccountDeleted{ID: acc.ID, Email: acc.Email}
	if err := s.Store.Append(ctx, acc.ID, evt, current, correlationID); err != nil {
		return err
	}
	return s.publish(ctx, evt, current+1, correlationID)
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*AccountResponse, error) {
	acc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(acc), nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]*AccountResponse, error) {
	accounts, err := s.Repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	return out, nil
}

// SearchAccounts runs a multi_match query on email and name against the
// consumer-maintained search index.
func (s *AccountService) SearchAccounts(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *AccountService) currentVersion(ctx context.Context, aggregateID string) (int, error) {
	history, err := s.Store.GetEvents(ctx, aggregateID)
	if err != nil {
		return 0, fmt.Errorf("reading history: %w", err)
	}
	return len(history), nil
}

// publish sends the event and, on success, marks its outbox row dispatched
// so the relay does not resend it. A send failure is surfaced to the
// caller; the committed append stays put and the relay guarantees eventual
// delivery.
func (s *AccountService) publish(ctx context.Context, evt event.Event, version int, correlationID string) error {
	if err := s.Pub.Publish(ctx, evt, evt.Subject(), correlationID); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"subject":        evt.Subject(),
			"aggregate_id":   evt.AggregateID(),
			"correlation_id": correlationID,
		}).Error("publish failed; outbox relay will retry")
		return err
	}
	if err := s.Store.MarkDispatched(ctx, evt.AggregateID(), version); err != nil {
		// Harmless: the relay republishes and the consumer is idempotent.
		s.Logger.WithError(err).Warn("could not mark outbox row dispatched")
	}
	return nil
}

func sessionKey(id string) string { return "user:session:" + id }

func (s *AccountService) recordSession(ctx context.Context, acc *entity.Account, expiresAt time.Time) {
	if s.Redis == nil {
		return
	}
	key := sessionKey(acc.ID)
	pipe := s.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    acc.ID,
		"email":      acc.Email,
		"name":       acc.Name,
		"profile":    acc.Profile.String(),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.ExpireAt(ctx, key, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		s.Logger.WithError(err).WithField("key", key).Warn("redis pipeline failed")
	}
}
