// Package audio holds mono float PCM buffers, the narration decoder with its
// raw PCM fallback, linear resampling and the procedural whoosh effect.
package audio
