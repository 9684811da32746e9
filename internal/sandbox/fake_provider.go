package sandbox

import "context"

// FakeProvider is a VMProvider test double: Session is returned verbatim from Connect, no
// staging/booting occurs, and Stage, Boot and Stop calls are recorded for assertions.
type FakeProvider struct {
	Session    GuestSession
	ConnectErr error
	BootErr    error
	StageErr   error

	Staged  []Bundle
	Booted  int
	Stopped int
}

func (p *FakeProvider) Stage(ctx context.Context, bundle Bundle) error {
	p.Staged = append(p.Staged, bundle)
	return p.StageErr
}

func (p *FakeProvider) Boot(ctx context.Context) error {
	p.Booted++
	return p.BootErr
}

func (p *FakeProvider) Connect(ctx context.Context) (GuestSession, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	return p.Session, nil
}

func (p *FakeProvider) Stop(ctx context.Context) error {
	p.Stopped++
	return nil
}

// pipeGuestSession wraps two io.Pipe halves so a test can play the guest role on one end
// while the Runner talks to the other.
type pipeGuestSession struct {
	r interface {
		Read([]byte) (int, error)
	}
	w interface {
		Write([]byte) (int, error)
		Close() error
	}
}

func (s *pipeGuestSession) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *pipeGuestSession) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *pipeGuestSession) Close() error                { return s.w.Close() }
