package domain

import "sort"

// SortByPosition orders services ascending by Position in place.
// Services without a position sort after every positioned one.
// The sort is stable: equal keys keep their incoming (insertion) order.
func SortByPosition(services []Service) {
	sort.SliceStable(services, func(i, j int) bool {
		return positionLess(services[i].Position, services[j].Position)
	})
}

func positionLess(a, b *int) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// IndexByName returns the index of the service named name, or -1.
func IndexByName(services []Service, name string) int {
	for i := range services {
		if services[i].Name == name {
			return i
		}
	}
	return -1
}
