package chathub

import (
	"context"
)

// AnnouncementSource доставляє оголошення оператора, зазвичай з Redis.
type AnnouncementSource interface {
	SubscribeAnnouncements(ctx context.Context) (<-chan string, error)
}

// StartAnnouncementListener пересилає оголошення в хаб, доки не завершиться ctx
// або не закриється підписка.
func (m *ManagerService) StartAnnouncementListener(ctx context.Context, src AnnouncementSource) error {
	announcements, err := src.SubscribeAnnouncements(ctx)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case text, ok := <-announcements:
				if !ok {
					m.log.Info("Announcement subscription closed")
					return
				}
				select {
				case m.AnnounceCh <- text:
				case <-ctx.Done():
					return
				case <-m.done:
					return
				}
			}
		}
	}()
	return nil
}
