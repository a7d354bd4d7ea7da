// Package clock abstracts time for components that wait or expire entries.
//
// Production code uses System(), which delegates to the time package. Tests
// inject a Fake and advance it manually, making retry delays and cache
// expiry deterministic.
package clock
