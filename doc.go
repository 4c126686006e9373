// Package worldview is a live viewer backend for streams of point-cloud
// and mesh files produced by an external reconstruction pipeline.
//
// Files arrive on disk (watched live, or replayed from a directory), are
// classified by their geometry schema, and land in GPU-resident vertex and
// index buffers. A keyed table holds at most one live artifact per logical
// stream; newer files for the same stream replace older ones, so a render
// loop always draws the latest state with bounded memory.
//
// The root package holds the vocabulary shared by producers and the
// consumer: [Key], [Element], [Event], and the package logger. The actual
// machinery lives in the subpackages:
//
//   - ply: header and payload reader for the on-disk geometry format
//   - gpu: buffer lifecycle and the HAL device adapter
//   - artifact: schema classification and the three artifact kinds
//   - sequence: the replace-policy keyed table shared with the consumer
//   - inject: filesystem watcher and playback producers
//   - render: per-kind pipelines and offscreen frame rendering
package worldview
