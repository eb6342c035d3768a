package session

import "github.com/jrsteele09/go-auth-client/remote"

// Status is the session state machine position.
type Status int

const (
	Anonymous Status = iota
	Authenticated
	Refreshing
	Expired
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// State is a snapshot of the session. User is set while Authenticated and
// kept through Refreshing.
type State struct {
	Status Status
	User   *remote.User
}

// Navigator is the routing layer. The session calls it with the login route
// after logout and after a failed refresh.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}
