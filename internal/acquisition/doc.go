// Package acquisition is the client for the release service. It asks whether
// a newer package exists for a deployment/app version/package hash and reports
// download and deployment telemetry. It keeps no local state and never retries:
// every transport failure or non-2xx response surfaces as an *Error.
package acquisition
