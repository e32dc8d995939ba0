// Package assets loads the visuals of a production once per unique source
// and keeps them for the length of a render. Stills are decoded and
// pre-scaled up front; clips keep their soundtrack in memory and decode
// frames on demand, one ffmpeg stream per trim window.
package assets
