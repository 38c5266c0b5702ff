// Package lock serializes booking checks per (item, event date) and
// concurrent edits of one order.
package lock

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

var ErrLockTimeout = errors.New("booking_busy")

// Release frees every key taken by one Acquire call. Safe to call twice.
type Release func()

// Locker acquires a set of keys as a unit. Implementations take keys in
// sorted order so overlapping requests cannot deadlock.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (Release, error)
	Backend() string
}

// BookingKey names the lock guarding bookings of one item on one date.
func BookingKey(itemID int64, eventDate string) string {
	var b strings.Builder
	b.WriteString("orderdesk:booking:")
	b.WriteString(strconv.FormatInt(itemID, 10))
	b.WriteByte(':')
	b.WriteString(strings.TrimSpace(eventDate))
	return b.String()
}

// OrderKey names the lock guarding edits of one order. Callers take it
// before any booking key.
func OrderKey(orderID int64) string {
	return "orderdesk:order:" + strconv.FormatInt(orderID, 10)
}

// normalizeKeys drops blanks and duplicates and sorts the rest.
func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func noopRelease() {}
