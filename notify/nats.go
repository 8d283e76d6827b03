package notify

import (
	"context"
	"encoding/json"
	"time"

	"match-engine/models"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON body published for every signal.
type Envelope struct {
	Signal  models.SignalType `json:"signal"`
	UserID  string            `json:"user_id"`
	Payload map[string]any    `json:"payload,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// NATSNotifier publishes each signal on <prefix>.<signal>.
type NATSNotifier struct {
	pub    Publisher
	prefix string
	clock  clockwork.Clock
}

func NewNATSNotifier(pub Publisher, prefix string, clock clockwork.Clock) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{pub: pub, prefix: prefix, clock: clock}
}

const DefaultSubjectPrefix = "matches.signals"

func (n *NATSNotifier) Subject(signal models.SignalType) string {
	return n.prefix + "." + string(signal)
}

func (n *NATSNotifier) Emit(ctx context.Context, userID string, signal models.SignalType, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Envelope{
		Signal:  signal,
		UserID:  userID,
		Payload: payload,
		SentAt:  n.clock.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "encode signal")
	}
	if err := n.pub.Publish(n.Subject(signal), data); err != nil {
		return eris.Wrapf(err, "publish %s", signal)
	}
	return nil
}

// Connect dials NATS, authenticating with token when one is set.
func Connect(url, token string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("match-engine"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "connect nats %s", url)
	}
	return conn, nil
}
