// Package production models one short-video production as it moves through
// the pipeline: its inputs, the intermediate products each stage leaves
// behind, progress fields, and the explicit status machine
// (idle through rendering, ending in completed or failed).
package production
