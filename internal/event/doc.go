// Package event provides a pub-sub event bus for decoupled communication
// between the build supervisor and whatever displays its state.
//
// The supervisor publishes events without knowing who will receive them; a
// status line, a notifier and a log writer can all subscribe independently.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Build Lifecycle:
//   - [BuildStartedEvent]: A build process was spawned
//   - [BuildStoppedEvent]: A build was stopped by the caller
//   - [ProcessExitedEvent]: The build process closed on its own
//   - [LifecycleEvent]: One classified start/success/error/watch-ready event
//   - [PhaseChangedEvent]: The observable build phase changed
//   - [ToolDetectedEvent]: Output was attributed to a build tool
//
// Degradation and Configuration:
//   - [TransportDegradedEvent]: The plain transport replaced the terminal transport
//   - [ProfilesReloadedEvent]: Custom tool profiles were reloaded from disk
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously, in subscription order, and protected against panics; a
// panicking handler is logged and does not prevent other handlers from
// being called.
//
// # Patterns
//
// Subscribe takes an exact event type, "*" for every event, or a category
// prefix such as "build.*".
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
//	    changed := e.(event.PhaseChangedEvent)
//	    fmt.Printf("%s -> %s\n", changed.OldPhase, changed.NewPhase)
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) {
//	    logger.Debug("event", "type", e.EventType())
//	})
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action", all under "build.":
// build.started, build.stopped, build.process_exited, build.lifecycle,
// build.phase_changed, build.tool_detected, build.transport_degraded and
// build.profiles_reloaded.
package event
