// Package logging writes buildwatch's diagnostic log as JSON lines.
//
// Each line is one slog record. Loggers derived with [Logger.WithBuild],
// [Logger.WithTool] and [Logger.WithComponent] stamp the keys build_id, tool
// and component, which is what `buildwatch logs --build` filters on:
//
//	log := logger.WithBuild(id).WithComponent("supervisor")
//	log.Info("build phase changed", "old_phase", "building", "new_phase", "ready")
//
// With a log directory configured, output goes to {dir}/buildwatch.log and is
// rotated by [RotatingWriter] once it passes the size limit; older files are
// kept as buildwatch.log.1, buildwatch.log.2 and so on. Without one, output
// goes to stderr. Components handed a nil *Logger use [OrNop].
package logging
