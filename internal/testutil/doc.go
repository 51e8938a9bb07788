// Package testutil contains helpers used across tests to script model
// replies and record run events. They are not intended for production usage.
package testutil
