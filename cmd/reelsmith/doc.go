// Command reelsmith produces short vertical videos from a topic and optional
// uploads, and inspects the journal of past productions.
//
//	reelsmith produce --topic "how foxes hunt in snow" --image fox.png
//	reelsmith runs list
//	reelsmith runs show 3f2a
//	reelsmith preflight
package main
