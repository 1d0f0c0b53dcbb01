// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package plan

import "github.com/brane-org/brane/internal/ir"

const offlineLocation = "localhost"

// localDataIndex wraps a DataIndex so every dataset it knows about
// reports itself as available at offlineLocation only, using the
// underlying index's offlineLocation path if it has one and the
// dataset name otherwise; other locations are dropped — the offline planner
// assumes everything it can see is already local (spec.md §4.6
// "Offline variant").
type localDataIndex struct {
	inner DataIndex
}

func (l localDataIndex) Lookup(name string) (DataInfo, bool) {
	if l.inner == nil {
		return DataInfo{}, false
	}
	info, ok := l.inner.Lookup(name)
	if !ok {
		return DataInfo{}, false
	}
	access := map[string]ir.AccessKind{offlineLocation: {Path: name}}
	for loc, a := range info.Access {
		if loc == offlineLocation {
			access[loc] = a
		}
	}
	return DataInfo{Access: access}, true
}

// Offline constructs a Planner that fixes every `at` to "localhost"
// and treats every known dataset as locally available, per spec.md
// §4.6. data only needs to answer "do I know this name", not report
// real remote locations.
func Offline(data DataIndex) *Planner {
	return &Planner{Data: localDataIndex{inner: data}, offline: true}
}
