package viewmodel

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/trolltrack/trolltrack/internal/errors"
)

// Route names a page.
type Route string

// Absolute routes, one per page.
const (
	RouteDashboard Route = "//Dashboard"
	RouteCatches   Route = "//Catches"
	RoutePrograms  Route = "//Program"
	RouteLures     Route = "//Lures"
	RouteAnalytics Route = "//Analytics"
	RouteSettings  Route = "//Settings"
)

var allRoutes = []Route{RouteDashboard, RouteCatches, RoutePrograms, RouteLures, RouteAnalytics, RouteSettings}

// Routes returns every route in menu order.
func Routes() []Route {
	return slices.Clone(allRoutes)
}

// Name is the route without its leading slashes.
func (r Route) Name() string {
	return strings.TrimPrefix(string(r), "//")
}

// ParseRoute accepts "//Catches", "Catches" or "catches".
func ParseRoute(s string) (Route, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "//")
	for _, r := range allRoutes {
		if strings.EqualFold(r.Name(), name) {
			return r, nil
		}
	}
	// "programs" is what people type
	if strings.EqualFold(name, "programs") {
		return RoutePrograms, nil
	}
	return "", errors.Newf("unknown page %q", s).
		Component("viewmodel").
		Category(errors.CategoryValidation).
		Build()
}

// Navigator moves between pages. The shell that owns the pages implements it.
type Navigator interface {
	GoTo(ctx context.Context, route Route) error
}

// StackNavigator keeps a back stack and tells a callback about every move.
type StackNavigator struct {
	mu       sync.Mutex
	stack    []Route
	onChange func(Route)
}

// NewStackNavigator starts at start. onChange may be nil.
func NewStackNavigator(start Route, onChange func(Route)) *StackNavigator {
	return &StackNavigator{stack: []Route{start}, onChange: onChange}
}

// GoTo pushes route. Absolute routes replace the stack.
func (n *StackNavigator) GoTo(_ context.Context, route Route) error {
	if !slices.Contains(allRoutes, route) {
		return errors.Newf("unknown page %q", string(route)).
			Component("viewmodel").
			Category(errors.CategoryValidation).
			Build()
	}
	n.mu.Lock()
	n.stack = append(n.stack[:0], route)
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil {
		cb(route)
	}
	return nil
}

// Push adds route on top of the current page so Back returns to it.
func (n *StackNavigator) Push(route Route) {
	n.mu.Lock()
	n.stack = append(n.stack, route)
	cb := n.onChange
	n.mu.Unlock()
	if cb != nil {
		cb(route)
	}
}

// Back pops the current page. It returns false on the root page.
func (n *StackNavigator) Back() bool {
	n.mu.Lock()
	if len(n.stack) < 2 {
		n.mu.Unlock()
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	cur := n.stack[len(n.stack)-1]
	cb := n.onChange
	n.mu.Unlock()
	if cb != nil {
		cb(cur)
	}
	return true
}

// Current returns the page on top of the stack.
func (n *StackNavigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}
