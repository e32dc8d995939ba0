// Package sequencer decides which visual fills each scene.
//
// Uploaded clips are cut into equal trim windows by Partition. Sequence then
// interleaves clips on even scenes, user images next, and generated images
// for whatever remains, always producing the full scene count.
package sequencer
