package service

import "sync/atomic"

// Status tracks request counters for the admin status endpoint. All
// counters are monotonic and safe for concurrent use.
type Status struct {
	requests     atomic.Uint64
	granted      atomic.Uint64
	denied       atomic.Uint64
	unauthorized atomic.Uint64
	clientErrors atomic.Uint64
	serverErrors atomic.Uint64
}

// NewStatus creates a zeroed counter block.
func NewStatus() *Status {
	return &Status{}
}

func (s *Status) Request()      { s.requests.Add(1) }
func (s *Status) Granted()      { s.granted.Add(1) }
func (s *Status) Denied()       { s.denied.Add(1) }
func (s *Status) Unauthorized() { s.unauthorized.Add(1) }
func (s *Status) ClientError()  { s.clientErrors.Add(1) }
func (s *Status) ServerError()  { s.serverErrors.Add(1) }

// Snapshot returns a point-in-time copy of the counters.
func (s *Status) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"requests":      s.requests.Load(),
		"auth_granted":  s.granted.Load(),
		"auth_denied":   s.denied.Load(),
		"unauthorized":  s.unauthorized.Load(),
		"client_errors": s.clientErrors.Load(),
		"server_errors": s.serverErrors.Load(),
	}
}
