// Package preflight provides readiness checks for the directories, media
// binaries, and HTTP collaborators a production depends on.
//
// These checks run in two contexts:
//   - `reelsmith produce` calls RunAll before the first stage so a broken
//     setup fails in seconds instead of after the script is written.
//   - `reelsmith preflight` prints every result, including optional ones.
//
// Collaborator checks are skipped when their API key is empty.
package preflight
