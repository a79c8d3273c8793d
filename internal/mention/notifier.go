package mention

import (
	"context"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/Magnec/chatspace/internal/repository"
)

// StoreNotifier persists notifications through the notification
// repository. Reading them back (badges, inboxes) is the notification
// UI's concern, not ours.
type StoreNotifier struct {
	repo repository.NotificationRepository
}

func NewStoreNotifier(repo repository.NotificationRepository) *StoreNotifier {
	return &StoreNotifier{repo: repo}
}

func (n *StoreNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	return n.repo.Create(ctx, notification)
}
