package core

// Process exit codes of the infostore command.
const (
	ExitCodeSuccess       = 0
	ExitCodeFailedStartup = 1
	ExitCodeForceQuit     = 2
	ExitCodeFailedCommand = 3
	ExitCodeUsage         = 64
)
