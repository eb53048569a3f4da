// Package oteladapters provides OpenTelemetry implementations of the
// instrument package's collector interfaces, for plug-and-play span, metric,
// and log backends without implementing the interfaces yourself.
package oteladapters
