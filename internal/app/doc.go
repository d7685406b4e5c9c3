// Package app provides the application service layer.
//
// Owns the registry of mounted overlay sessions: mount, lookup, idle reclamation and shutdown.
// Sits between HTTP handlers and the overlay engine. Depends on domain interfaces, not concrete adapters.
package app
