package natsbus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to every result subject
const SubjectPrefix = "wifiddle.results"

// Subject returns the subject a result is published on
func Subject(r entity.AttackResult) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, r.Domain, r.Attack)
}

// Bus publishes attack results to NATS
type Bus struct {
	nc  *nats.Conn
	log *logrus.Entry

	published atomic.Int64
	failed    atomic.Int64
}

// Connect dials the NATS server at url
func Connect(url string, log *logrus.Entry) (*Bus, error) {
	b := &Bus{log: log.WithField("component", "natsbus")}

	nc, err := nats.Connect(url,
		nats.Name("wifiddle"),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	b.nc = nc
	b.log.WithField("url", nc.ConnectedUrlRedacted()).Info("Connected to NATS")
	return b, nil
}

// Publish sends one result as JSON
func (b *Bus) Publish(r entity.AttackResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	subject := Subject(r)
	if err := b.nc.Publish(subject, data); err != nil {
		b.failed.Add(1)
		return fmt.Errorf("publishing result to %s: %w", subject, err)
	}
	b.published.Add(1)
	b.log.WithFields(logrus.Fields{"subject": subject, "result": r.ID}).Debug("Result published")
	return nil
}

// Stats returns the published and failed counters
func (b *Bus) Stats() (published, failed int64) {
	return b.published.Load(), b.failed.Load()
}

// Close flushes pending messages and closes the connection
func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	err := b.nc.FlushTimeout(2 * time.Second)
	b.nc.Close()
	return err
}
