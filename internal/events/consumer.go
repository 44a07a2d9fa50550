package events

// ConsumerFunc adapts a function to EventConsumer
type ConsumerFunc struct {
	name  string
	types []Type
	fn    func(Event) error
}

// NewConsumerFunc creates a consumer for the given types; no types means all
func NewConsumerFunc(name string, fn func(Event) error, types ...Type) *ConsumerFunc {
	return &ConsumerFunc{name: name, types: types, fn: fn}
}

// Name implements EventConsumer
func (c *ConsumerFunc) Name() string { return c.name }

// Types implements EventConsumer
func (c *ConsumerFunc) Types() []Type {
	if len(c.types) == 0 {
		return nil
	}
	return c.types
}

// ProcessEvent implements EventConsumer
func (c *ConsumerFunc) ProcessEvent(event Event) error { return c.fn(event) }
