// Package staging lists and removes the per-run directories under
// paths.staging_dir that hold generated scenes and narration.
package staging
