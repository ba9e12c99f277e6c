// Package arranger runs the pipeline for each new desktop entry: wait for it
// to settle, pick the destination folder from the connected drives, move it,
// tell the user, and open the destination.
//
// Handle runs the pipeline in the background and is what the watcher calls.
// Arrange runs it synchronously for manual requests.
package arranger
