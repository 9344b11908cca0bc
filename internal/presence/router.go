package presence

// Router resolves a user id to a live connection and performs best-effort
// push delivery. A user being offline is a normal state, not a fault.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over the registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Resolve returns the recipient's connection, if online.
func (rt *Router) Resolve(userID int) (Conn, bool) {
	return rt.registry.Resolve(userID)
}

// Deliver pushes payload to userID's connection when one exists. It never
// blocks and never returns an error: the boolean only reports whether the
// payload was handed to a live connection.
func (rt *Router) Deliver(userID int, payload []byte) bool {
	conn, ok := rt.registry.Resolve(userID)
	if !ok {
		return false
	}
	return conn.Send(payload)
}
