// Package processors holds the per-category content transformers and the
// router that selects among them.
//
// Every processor implements interfaces.Processor: a Supports predicate,
// validation that runs before any transformation, and Process, which
// extracts metadata and produces derived artifacts. The video and audio
// processors probe and transcode through the MediaToolkit interface, whose
// production implementation shells out to ffmpeg/ffprobe; tests substitute
// a scripted toolkit. The archive processor builds a manifest before any
// extraction and enforces zip-bomb and path-traversal guards.
package processors
