package main

// Exit codes. A completed run exits 0 even when entries stayed unmatched;
// non-zero is reserved for fatal failures against the input file or the
// output/log sinks.
const (
	ExitSuccess     = 0 // Completed run
	ExitError       = 1 // General error (runtime failure, sink I/O)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config)
	ExitDataError   = 3 // Input error (missing or malformed BibTeX file)
)
