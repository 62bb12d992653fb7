// Package obs wires the process-wide zerolog logger and a sensitive-field
// redactor used when payload logging is enabled.
package obs
