package notify

import (
	"context"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository"
)

// InAppChannel сохраняет уведомление в таблицу notifications
type InAppChannel struct {
	repo repository.Notifications
}

func NewInAppChannel(repo repository.Notifications) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Send(ctx context.Context, user *model.User, n Notification) error {
	return c.repo.Create(ctx, &model.Notification{
		UserID: user.ID,
		Kind:   string(n.Kind),
		Title:  n.Title,
		Body:   n.Body,
	})
}
