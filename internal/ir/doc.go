// Package ir provides the canonical value form used to fingerprint
// documents and parser event traces.
//
// Values are restricted to strings, integers, booleans, arrays and objects.
// Floats and null are not representable; callers render floats as strings.
// ir imports nothing internal.
package ir
