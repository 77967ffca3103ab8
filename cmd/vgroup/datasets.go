package main

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup"
	"www.velocidex.com/golang/vgroup/materializer"
)

// Load every dataset into memory. The time range of a dataset spans
// the time field of its documents.
func loadDatasets(paths map[string]string, time_field string) ([]*vgroup.Dataset, error) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []*vgroup.Dataset
	for _, name := range names {
		fd, err := os.Open(paths[name])
		if err != nil {
			return nil, errors.WithStack(err)
		}
		docs, err := materializer.ReadDocuments(fd)
		fd.Close()
		if err != nil {
			return nil, errors.Wrap(err, paths[name])
		}

		start, end := timeRange(docs, time_field)
		result = append(result, &vgroup.Dataset{
			Name:    name,
			Session: materializer.NewInMemorySession(name, docs),
			Start:   start,
			End:     end,
		})
	}
	return result, nil
}

func timeRange(docs []*materializer.Document, field string) (time.Time, time.Time) {
	var lo, hi int64
	seen := false
	for _, doc := range docs {
		for _, value := range doc.Ints[field] {
			if !seen || value < lo {
				lo = value
			}
			if !seen || value > hi {
				hi = value
			}
			seen = true
		}
	}
	if !seen {
		return time.Time{}, time.Time{}
	}
	return time.Unix(lo, 0), time.Unix(hi+1, 0)
}
