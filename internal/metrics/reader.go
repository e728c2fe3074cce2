// Package metrics is the boundary to the engagement-metric collaborator.
// Scraping and platform APIs live behind it; the engines only ever see a
// numeric reading.
package metrics

import "context"

// Reader fetches the current value of a metric (likes, views, comments, ...)
// for a piece of content.
type Reader interface {
	Read(ctx context.Context, contentRef, metricType string) (float64, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, contentRef, metricType string) (float64, error)

func (f ReaderFunc) Read(ctx context.Context, contentRef, metricType string) (float64, error) {
	return f(ctx, contentRef, metricType)
}
