// Package delivery holds the last two stage handlers: Preloader builds the
// timeline and loads every scene asset, Renderer drives the render engine
// and publishes the recording with its caption and metadata sidecars.
package delivery
