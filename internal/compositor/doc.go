// Package compositor draws one video frame at a time onto a reusable RGBA
// canvas: a cover-fitted still or clip frame, film grain, a radial vignette
// and burned-in captions with a drop shadow and outline.
package compositor
