// Package natsbus wraps an embedded NATS server and a client used for run
// event fan-out and bucket notifications.
package natsbus

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// ServerOptions configures the embedded server.
type ServerOptions struct {
	Host string
	// Port to listen on; natsserver.RANDOM_PORT picks a free one.
	Port         int
	ReadyTimeout time.Duration
}

// Bus is an embedded NATS server for local development and tests.
type Bus struct {
	server *natsserver.Server
}

// New starts an embedded server and waits until it accepts connections.
func New(optFns ...func(o *ServerOptions)) (*Bus, error) {
	opts := ServerOptions{
		Host:         "127.0.0.1",
		Port:         natsserver.RANDOM_PORT,
		ReadyTimeout: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   opts.Host,
		Port:   opts.Port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}

	return &Bus{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (b *Bus) ClientURL() string {
	return b.server.ClientURL()
}

// Close shuts the server down and waits for it to stop.
func (b *Bus) Close() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
