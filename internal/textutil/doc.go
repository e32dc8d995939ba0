// Package textutil holds small text helpers: token fingerprints for spotting
// near-duplicate scene prompts, and file-name sanitizing for published
// artifacts.
package textutil
