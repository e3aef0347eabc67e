// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the launch lifecycle (local exec, fleet
// management, fleet cleanup), decoupled from the CLI entrypoint.
package app
