// Package achievement evaluates one-shot achievements and claims them.
//
// A claim is a plain insert guarded by UNIQUE (user_id, achievement_key):
// however many syncs race on the same achievement, the database lets one
// insert through and only that caller announces it.
package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/notify"
	"github.com/sakif/playtracker/internal/repository"
)

type Claimer struct {
	store    repository.AchievementRepository
	notifier notify.Notifier
	logger   *slog.Logger
	catalog  []Definition
}

func NewClaimer(store repository.AchievementRepository, notifier notify.Notifier, logger *slog.Logger) *Claimer {
	return &Claimer{
		store:    store,
		notifier: notifier,
		logger:   logger,
		catalog:  Catalog,
	}
}

// Seed writes the catalog to the store. Claims reference catalog keys, so
// this runs before the first evaluation.
func (c *Claimer) Seed(ctx context.Context) error {
	rows := make([]model.Achievement, len(c.catalog))
	for i, d := range c.catalog {
		rows[i] = model.Achievement{Key: d.Key, Title: d.Title, Category: d.Category}
	}
	if err := c.store.SeedAchievements(ctx, rows); err != nil {
		return fmt.Errorf("achievement: seeding catalog: %w", err)
	}
	return nil
}

// Claim records that userID earned key on date. alreadyClaimed is true when
// a claim existed before this call, in which case nothing changed.
func (c *Claimer) Claim(ctx context.Context, userID, key, date string) (alreadyClaimed bool, err error) {
	res, err := c.store.InsertUserAchievement(ctx, &model.UserAchievement{
		UserID:         userID,
		AchievementKey: key,
		Date:           date,
	})
	if err != nil {
		return false, err
	}
	return res == repository.AlreadyExists, nil
}

// Evaluate checks every catalog entry against m and claims the ones that
// pass. Newly claimed keys are returned in catalog order and, unless
// silent, announced. A failed claim is logged and does not stop the loop.
func (c *Claimer) Evaluate(ctx context.Context, user *model.User, m Metrics, date string, silent bool) ([]string, error) {
	var (
		won  []string
		errs []error
	)
	for _, d := range c.catalog {
		ok, game := d.Check(m)
		if !ok {
			continue
		}

		already, err := c.Claim(ctx, user.ID, d.Key, date)
		if err != nil {
			c.logger.Error("claiming achievement",
				"user_id", user.ID,
				"achievement", d.Key,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		if already {
			continue
		}

		won = append(won, d.Key)
		c.logger.Info("achievement unlocked", "user_id", user.ID, "achievement", d.Key)
		if silent {
			continue
		}

		text, err := render(d, MessageData{User: user.Name, Game: game, Title: d.Title})
		if err != nil {
			c.logger.Error("rendering achievement message", "achievement", d.Key, "error", err)
			continue
		}
		notify.Deliver(ctx, c.notifier, c.logger, text)
	}
	return won, errors.Join(errs...)
}

func render(d Definition, data MessageData) (string, error) {
	var b strings.Builder
	if err := d.Message.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
