// Package security scans cleaned message text for configured
// prompt-injection, forbidden-action, unauthorized-access, and
// rate-limit violation patterns, per §4.J.
package security
