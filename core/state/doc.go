// Package state provides a lightweight per-user session store for conversational bots.
// It is domain-agnostic: a bot supplies its own states and the type of data it collects.
package state
