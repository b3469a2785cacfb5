package notify

import (
	"context"
	"log/slog"
	"time"
)

// Message is a transactional email: a template name plus its props,
// rendered and delivered by the external mail service.
type Message struct {
	Template string
	To       string
	Props    map[string]any
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatch sends fire-and-forget: delivery failures are logged and never
// propagate into the business operation that triggered the email.
func Dispatch(log *slog.Logger, sender Sender, msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := sender.Send(ctx, msg); err != nil {
			log.Error("email delivery failed",
				"template", msg.Template,
				"to", msg.To,
				"err", err)
		}
	}()
}
