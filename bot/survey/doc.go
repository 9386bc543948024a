// Package survey implements the D&D survey conversation: the transition table,
// the controller that applies it to a user's session, and the dispatcher rules
// that route inbound events to the controller.
package survey
