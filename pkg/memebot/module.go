package memebot

import "context"

// EventHandler processes a single neutral event.
type EventHandler func(ctx context.Context, event *Event) error

// EventSink accepts neutral events for dispatching into the kernel.
type EventSink interface {
	// Publish submits an event for dispatch.
	Publish(ctx context.Context, event *Event) error
}

// CommandSpec declares one command name a module owns.
type CommandSpec struct {
	// Name is the command token without prefix.
	Name string
	// Usage is the help line rendered for this command.
	Usage string
	// Description describes command behavior for help text.
	Description string
}

// HandlerSpec binds one handler to the events it consumes.
//
// A handler with Commands set receives command events whose name matches one
// of the listed tokens. A handler with Fallback set receives command events
// whose name matched no registered command anywhere. A handler with Kinds set
// receives non-command events of those kinds.
type HandlerSpec struct {
	// Name identifies the handler for diagnostics.
	Name string
	// Commands lists command names routed to this handler.
	Commands []string
	// Fallback marks this handler as the unresolved-command consumer.
	Fallback bool
	// Kinds lists non-command event kinds routed to this handler.
	Kinds []EventKind
	// Handler is the handler function.
	Handler EventHandler
}

// ModuleSpec declares a module's handlers and owned commands.
type ModuleSpec struct {
	// Handlers lists the module's event handler bindings.
	Handlers []HandlerSpec
	// Commands lists command registrations surfaced in help text and
	// reserved against meme registration.
	Commands []CommandSpec
}

// ModuleRuntime provides kernel facilities to modules during registration.
type ModuleRuntime interface {
	// Services exposes the service registry for dependency lookup.
	Services() ServiceRegistry
}

// Module is a lifecycle-aware command handler plugin.
//
// The kernel dispatches events sequentially: one handler completes before the
// next event is delivered, so modules do not need internal locking around
// registry state.
type Module interface {
	// Name returns a stable module identifier.
	Name() string
	// Spec declares the module's handlers and commands.
	Spec() ModuleSpec
	// OnRegister is called once when the module is registered.
	OnRegister(ctx context.Context, runtime ModuleRuntime) error
	// OnStart is called when the kernel begins runtime execution.
	OnStart(ctx context.Context) error
	// OnShutdown is called during orderly shutdown.
	OnShutdown(ctx context.Context) error
}

// Driver adapts an external platform into neutral events.
//
// Drivers own transport/session concerns and must publish only memebot.Event.
type Driver interface {
	// Name returns a stable driver identifier.
	Name() string
	// Start starts consuming external updates and publishing neutral events.
	// It should return only after context cancellation or fatal error.
	Start(ctx context.Context, sink EventSink) error
	// Shutdown stops external resources that are not tied to Start context alone.
	Shutdown(ctx context.Context) error
}
