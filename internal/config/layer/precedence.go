package layer

// Standard layer names, from highest to lowest precedence.
const (
	// Runtime holds values set programmatically while the process runs.
	Runtime = "runtime"

	// Remote holds values mirrored from a remote store.
	Remote = "remote"

	// Override holds caller-supplied override layers.
	Override = "override"

	// Environment holds values read from environment variables.
	Environment = "environment"

	// Application holds the cascaded application resources.
	Application = "application"

	// Libraries holds the cascaded library resources.
	Libraries = "libraries"

	// Defaults holds programmatic defaults.
	Defaults = "defaults"
)

// StandardNames returns the standard layer names in precedence order.
func StandardNames() []string {
	return []string{Runtime, Remote, Override, Environment, Application, Libraries, Defaults}
}

// Precedence returns the position of a standard layer, where 0 is the
// highest precedence. Returns -1 for unknown names.
func Precedence(name string) int {
	for i, n := range StandardNames() {
		if n == name {
			return i
		}
	}
	return -1
}
