// Package services defines the shared error taxonomy used across pipeline
// components and the helper for wrapping failures with component context.
package services
