package layer

// ServiceBuilderOption configures a Service at construction.
type ServiceBuilderOption func(*service)

// WithLayer registers a layer with a priority and enabled state.
//
// Parameters:
//   - name: the layer name
//   - priority: records in higher priority layers sort after lower ones
//   - enabled: whether records in the layer are drawn
//
// Returns:
//   - ServiceBuilderOption: a function that applies the layer to the service
func WithLayer(name string, priority int, enabled bool) ServiceBuilderOption {
	return func(s *service) {
		s.priorities[name] = priority
		if name != DefaultLayer {
			s.disabled[name] = !enabled
		}
	}
}
