package consumer

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/domain/entity"
	"github.com/arcadehub/users-service/internal/domain/event"
	"github.com/arcadehub/users-service/internal/domain/repository"
)

type memRepo struct {
	byID    map[string]*entity.Account
	byEmail map[string]*entity.Account
	creates int
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:    make(map[string]*entity.Account),
		byEmail: make(map[string]*entity.Account),
	}
}

func (r *memRepo) Create(ctx context.Context, a *entity.Account) error {
	if _, ok := r.byEmail[a.Email]; ok {
		return repository.ErrDuplicate
	}
	r.byID[a.ID] = a
	r.byEmail[a.Email] = a
	r.creates++
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	a, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *memRepo) GetAll(ctx context.Context) ([]*entity.Account, error) {
	out := make([]*entity.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, a.Email)
	return nil
}

type recordingMail struct{ jobs []any }

func (m *recordingMail) PublishJSON(ctx context.Context, body any) error {
	m.jobs = append(m.jobs, body)
	return nil
}

func newTestWorker(repo repository.AccountRepository) *Worker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewWorker("amqp://unused", "users-events", repo, logger)
}

func createdBody(t *testing.T, id, email string) []byte {
	t.Helper()
	b, err := json.Marshal(event.AccountCreated{
		ID:       id,
		Name:     "Alice",
		Password: "$2a$10$fakehash",
		Email:    email,
		Profile:  "Common",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleUserCreatedIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	w := newTestWorker(repo)
	body := createdBody(t, "id-1", "alice@example.com")

	for i := 0; i < 2; i++ {
		if err := w.Handle(context.Background(), event.SubjectUserCreated, body, "corr-1"); err != nil {
			t.Fatalf("Handle() pass %d error = %v", i+1, err)
		}
	}

	if repo.creates != 1 {
		t.Fatalf("expected exactly one insert, got %d", repo.creates)
	}
	a, err := repo.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("projected account missing: %v", err)
	}
	if a.Password != "$2a$10$fakehash" {
		t.Fatalf("hash must be stored verbatim, got %q", a.Password)
	}
}

func TestHandleUserCreatedEnqueuesWelcomeEmail(t *testing.T) {
	repo := newMemRepo()
	mail := &recordingMail{}
	w := newTestWorker(repo)
	w.Mail = mail

	body := createdBody(t, "id-1", "alice@example.com")
	if err := w.Handle(context.Background(), event.SubjectUserCreated, body, "corr-1"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(mail.jobs) != 1 {
		t.Fatalf("expected one email job, got %d", len(mail.jobs))
	}
	// A redelivery must not enqueue a second welcome email.
	if err := w.Handle(context.Background(), event.SubjectUserCreated, body, "corr-1"); err != nil {
		t.Fatalf("Handle() redelivery error = %v", err)
	}
	if len(mail.jobs) != 1 {
		t.Fatalf("redelivery enqueued a duplicate email, got %d jobs", len(mail.jobs))
	}
}

func TestHandleUserCreatedDropsUnknownProfile(t *testing.T) {
	repo := newMemRepo()
	w := newTestWorker(repo)

	b, _ := json.Marshal(event.AccountCreated{
		ID: "id-2", Name: "Eve", Email: "eve@example.com", Profile: "Superuser", Active: true,
	})
	if err := w.Handle(context.Background(), event.SubjectUserCreated, b, "corr-2"); err != nil {
		t.Fatalf("unmappable payloads must be acked, got error %v", err)
	}
	if repo.creates != 0 {
		t.Fatal("nothing should have been projected")
	}
}

func TestHandleUserDeleted(t *testing.T) {
	repo := newMemRepo()
	w := newTestWorker(repo)

	body := createdBody(t, "id-1", "alice@example.com")
	if err := w.Handle(context.Background(), event.SubjectUserCreated, body, "corr-1"); err != nil {
		t.Fatalf("Handle(created) error = %v", err)
	}

	del, _ := json.Marshal(event.AccountDeleted{ID: "id-1", Email: "alice@example.com"})
	if err := w.Handle(context.Background(), event.SubjectUserDeleted, del, "corr-3"); err != nil {
		t.Fatalf("Handle(deleted) error = %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "id-1"); err == nil {
		t.Fatal("projection should be gone")
	}

	// Redelivered delete for a record that is already gone is a success.
	if err := w.Handle(context.Background(), event.SubjectUserDeleted, del, "corr-3"); err != nil {
		t.Fatalf("Handle(deleted) redelivery error = %v", err)
	}
}

func TestHandleUnknownSubjectIsDropped(t *testing.T) {
	w := newTestWorker(newMemRepo())
	if err := w.Handle(context.Background(), "UserRenamed", []byte(`{}`), "corr-4"); err != nil {
		t.Fatalf("unknown subjects must be acked, got error %v", err)
	}
}

func TestHandleUserLogin(t *testing.T) {
	w := newTestWorker(newMemRepo())
	b, _ := json.Marshal(event.UserAuthenticated{ID: "id-1", Name: "Alice", IP: "10.0.0.1", Device: "cli"})
	if err := w.Handle(context.Background(), event.SubjectUserLogin, b, "corr-5"); err != nil {
		t.Fatalf("Handle(login) error = %v", err)
	}
}

func TestWorkerStateTransitions(t *testing.T) {
	w := newTestWorker(newMemRepo())
	if got := w.State(); got != StateStopped {
		t.Fatalf("fresh worker state = %s, want stopped", got)
	}
	// Stop on a worker that never started must refuse.
	if err := w.Stop(context.Background()); err == nil {
		t.Fatal("Stop on a stopped worker should error")
	}
}
