package commands

// Command describes a bot command shown in the client menu.
type Command struct {
	Description string
	AdminOnly   bool
	Hidden      bool
}
