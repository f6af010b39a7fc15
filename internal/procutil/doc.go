// Package procutil prepares child processes that must outlive the process
// that started them.
package procutil
