package natsbridge

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// ReadyTimeout bounds StartEmbedded's wait for the server.
const ReadyTimeout = 4 * time.Second

// StartEmbedded starts an in-process NATS server with JetStream enabled,
// storing streams below storeDir. The server opens no network ports.
func StartEmbedded(storeDir string) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		JetStream:  true,
		StoreDir:   storeDir,
		DontListen: true,
	})
	if err != nil {
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(ReadyTimeout) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}
	return ns, nil
}

// ConnectInProcess connects to ns without going through the network.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	return nats.Connect("", nats.InProcessServer(ns))
}

// Connect dials a NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("agentlauncher"))
}

// ShutdownEmbedded stops ns and waits up to timeout for it to exit.
func ShutdownEmbedded(ns *server.Server, timeout time.Duration) error {
	if ns == nil {
		return nil
	}
	ns.Shutdown()

	done := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("nats server shutdown timed out")
	}
}
