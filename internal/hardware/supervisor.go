package hardware

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Supervisor brings up a fixed set of Interfaces together and waits for
// them to wind down together, so main doesn't hand-roll a WaitGroup per
// deployment: each Interface still owns its own reconnect-with-backoff
// IO goroutine, but Stop blocks until every one of them has actually
// gone Offline.
type Supervisor struct {
	interfaces []*Interface
}

func NewSupervisor(interfaces ...*Interface) *Supervisor {
	return &Supervisor{interfaces: interfaces}
}

// Start brings every managed Interface Online.
func (s *Supervisor) Start() {
	for _, iface := range s.interfaces {
		iface.Online()
	}
}

// Stop takes every managed Interface Offline concurrently and waits for
// all of them to finish, returning once the slowest one has actually
// stopped its IO goroutine.
func (s *Supervisor) Stop(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, iface := range s.interfaces {
		iface := iface
		g.Go(func() error {
			iface.Offline()
			return nil
		})
	}
	return g.Wait()
}

// Interfaces returns the Supervisor's managed Interfaces, in the order
// they were given to NewSupervisor.
func (s *Supervisor) Interfaces() []*Interface { return s.interfaces }
