package consumer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/domain/entity"
	"github.com/arcadehub/users-service/internal/domain/event"
	"github.com/arcadehub/users-service/internal/domain/repository"
	"github.com/arcadehub/users-service/pkg/mailer"
)

// handleUserCreated projects a new account. If a record with that email is
// already present the event was applied before (or raced a duplicate
// create) and the message is a no-op success.
func (w *Worker) handleUserCreated(ctx context.Context, body []byte) error {
	evt, err := decode[event.AccountCreated](event.SubjectUserCreated, body)
	if err != nil {
		return err
	}

	exists, err := w.Repo.EmailExists(ctx, evt.Email)
	if err != nil {
		return err
	}
	if exists {
		w.Logger.WithField("email", evt.Email).Info("account already projected, skipping")
		return nil
	}

	profile, err := entity.ParseProfile(evt.Profile)
	if err != nil {
		// Unmappable payloads would loop forever on redelivery; drop them.
		w.Logger.WithError(err).WithField("id", evt.ID).Warn("dropping event with unknown profile")
		return nil
	}

	acc := entity.Restore(evt.ID, evt.Name, evt.Password, evt.Email, profile, evt.Active)
	if err := w.Repo.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return err
	}

	if w.Search != nil {
		if err := w.Search.Index(ctx, evt); err != nil {
			w.Logger.WithError(err).WithField("id", evt.ID).Warn("search index failed")
		}
	}
	if w.Mail != nil {
		job := mailer.EmailJob{
			To:       evt.Email,
			Template: mailer.TemplateWelcome,
			Data:     map[string]any{"Name": evt.Name},
		}
		if err := w.Mail.PublishJSON(ctx, job); err != nil {
			w.Logger.WithError(err).WithField("email", evt.Email).Warn("welcome email enqueue failed")
		}
	}

	w.Logger.WithFields(logrus.Fields{"id": evt.ID, "email": evt.Email}).Info("account projected")
	return nil
}

// handleUserDeleted removes the projection. A missing record means the
// delete was already applied; that is a no-op success, not an error.
func (w *Worker) handleUserDeleted(ctx context.Context, body []byte) error {
	evt, err := decode[event.AccountDeleted](event.SubjectUserDeleted, body)
	if err != nil {
		return err
	}

	if err := w.Repo.Delete(ctx, evt.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			w.Logger.WithField("id", evt.ID).Info("account already removed, skipping")
			return nil
		}
		return err
	}
	if w.Search != nil {
		if err := w.Search.Remove(ctx, evt.ID); err != nil {
			w.Logger.WithError(err).WithField("id", evt.ID).Warn("search index removal failed")
		}
	}

	w.Logger.WithField("id", evt.ID).Info("account projection removed")
	return nil
}

// handleUserLogin is audit-only; the read model does not change on login.
func (w *Worker) handleUserLogin(body []byte) error {
	evt, err := decode[event.UserAuthenticated](event.SubjectUserLogin, body)
	if err != nil {
		return err
	}
	w.Logger.WithFields(logrus.Fields{
		"id":     evt.ID,
		"ip":     evt.IP,
		"device": evt.Device,
	}).Info("login recorded")
	return nil
}

func decode[T event.Event](subject string, body []byte) (T, error) {
	var zero T
	evt, err := event.Decode(subject, body)
	if err != nil {
		return zero, err
	}
	typed, ok := evt.(T)
	if !ok {
		return zero, errors.New("subject and payload type mismatch")
	}
	return typed, nil
}
