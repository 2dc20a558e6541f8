// Package frontend is the entry point the training runtime embeds. A
// Frontend resolves the backend handle from settings, owns it for its whole
// life and drives the Constructed, ManagerAttached, Initialized and
// Terminated lifecycle shared by the handle, the schedule executor and the
// memory session.
package frontend
