// Package window groups parsed events into deterministic tumbling windows.
package window

import (
	"sort"
	"time"

	"authsignal/pkg/models"
)

// Category selects the window size and grouping dimensions for a signal class.
type Category string

const (
	CategoryLoginDedupe   Category = "login_dedupe"
	CategoryAccessPattern Category = "access_pattern"
	CategoryBruteForce    Category = "brute_force"
	CategoryPrivilege     Category = "privilege"
	CategoryAuthFailure   Category = "auth_failure"
)

// Window sizes in seconds, fixed per category.
const (
	loginDedupeWindow   = 300
	accessPatternWindow = 3600
	bruteForceWindow    = 3600
	privilegeWindow     = 600
	authFailureWindow   = 600
)

// Size returns the category window size in seconds.
func (c Category) Size() int64 {
	switch c {
	case CategoryLoginDedupe:
		return loginDedupeWindow
	case CategoryAccessPattern:
		return accessPatternWindow
	case CategoryBruteForce:
		return bruteForceWindow
	case CategoryPrivilege:
		return privilegeWindow
	case CategoryAuthFailure:
		return authFailureWindow
	}
	return accessPatternWindow
}

// Key identifies one tumbling window. Two events with equal grouping
// dimensions and timestamps in [Start, Start+size) always map to the same
// key regardless of arrival order.
type Key struct {
	Category Category
	User     string
	Host     string
	IP       string
	Source   string
	Start    int64
}

// Start of the tumbling window containing ts, as floor division on unix
// seconds.
func windowStart(ts time.Time, size int64) int64 {
	sec := ts.Unix()
	start := sec / size * size
	if sec < 0 && sec%size != 0 {
		start -= size
	}
	return start
}

// StartTime returns the window start as a UTC instant.
func (k Key) StartTime() time.Time {
	return time.Unix(k.Start, 0).UTC()
}

// Accumulator collects the events of one window. It is owned by exactly one
// key and mutated only while the aggregation pass folds events; Finalize
// hands out read-only views.
type Accumulator struct {
	Key        Key
	Count      int
	IPs        map[string]struct{}
	Events     []*models.ParsedEvent
	Detections []models.DetectionTag
}

func (a *Accumulator) addIP(ip string) {
	if a.IPs == nil {
		a.IPs = make(map[string]struct{}, 2)
	}
	a.IPs[ip] = struct{}{}
}

func (a *Accumulator) addDetections(tags []models.DetectionTag) {
	for _, tag := range tags {
		found := false
		for _, have := range a.Detections {
			if have.ID == tag.ID {
				found = true
				break
			}
		}
		if !found {
			a.Detections = append(a.Detections, tag)
		}
	}
}

// UniqueIPs returns the distinct IPs in sorted order.
func (a *Accumulator) UniqueIPs() []string {
	out := make([]string, 0, len(a.IPs))
	for ip := range a.IPs {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

// Aggregator folds a stream of events into per-key accumulators. Folding is
// order-independent: window assignment uses floor division only, so any
// permutation of the same events produces the same accumulator map.
type Aggregator struct {
	acc map[Key]*Accumulator

	// IAM changes are emitted per event, not windowed.
	iam []*models.ParsedEvent
}

// NewAggregator creates an empty aggregation pass.
func NewAggregator() *Aggregator {
	return &Aggregator{acc: make(map[Key]*Accumulator, 64)}
}

// Fold routes one event into the accumulators selected by its category
// keys, creating them on first touch.
func (g *Aggregator) Fold(ev *models.ParsedEvent) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case models.EventSSHLogin:
		dedupe := g.touch(Key{
			Category: CategoryLoginDedupe,
			User:     ev.User,
			Host:     ev.Hostname,
			IP:       ev.IP,
			Start:    windowStart(ev.Timestamp, loginDedupeWindow),
		})
		dedupe.Count++

		access := g.touch(Key{
			Category: CategoryAccessPattern,
			User:     ev.User,
			Host:     ev.Hostname,
			Start:    windowStart(ev.Timestamp, accessPatternWindow),
		})
		access.Count++
		access.addIP(ev.IP)
		access.addDetections(ev.Detections)

	case models.EventSSHFailure:
		acc := g.touch(Key{
			Category: CategoryBruteForce,
			User:     ev.User,
			Host:     ev.Hostname,
			IP:       ev.IP,
			Start:    windowStart(ev.Timestamp, bruteForceWindow),
		})
		acc.Count++
		acc.addDetections(ev.Detections)

	case models.EventPrivilegeEscalation:
		acc := g.touch(Key{
			Category: CategoryPrivilege,
			User:     ev.User,
			Host:     ev.Hostname,
			Start:    windowStart(ev.Timestamp, privilegeWindow),
		})
		acc.Count++
		acc.Events = append(acc.Events, ev)
		acc.addDetections(ev.Detections)

	case models.EventAuthFailure:
		acc := g.touch(Key{
			Category: CategoryAuthFailure,
			User:     ev.User,
			Host:     ev.Hostname,
			Source:   ev.Source,
			Start:    windowStart(ev.Timestamp, authFailureWindow),
		})
		acc.Count++
		acc.addDetections(ev.Detections)

	case models.EventIAMChange:
		g.iam = append(g.iam, ev)
	}
}

// Merge folds another aggregator's state into this one. Key collisions are
// merged, never overwritten, so per-shard maps combine into the same result
// a sequential pass would have produced.
func (g *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for key, acc := range other.acc {
		dst, ok := g.acc[key]
		if !ok {
			g.acc[key] = acc
			continue
		}
		dst.Count += acc.Count
		for ip := range acc.IPs {
			dst.addIP(ip)
		}
		dst.Events = append(dst.Events, acc.Events...)
		dst.addDetections(acc.Detections)
	}
	g.iam = append(g.iam, other.iam...)
}

// Finalize ends the aggregation pass and returns the accumulators in a
// deterministic order. The aggregator must not be folded into afterwards.
func (g *Aggregator) Finalize() []*Accumulator {
	out := make([]*Accumulator, 0, len(g.acc))
	for _, acc := range g.acc {
		sortEvents(acc.Events)
		sort.Slice(acc.Detections, func(i, j int) bool {
			return acc.Detections[i].ID < acc.Detections[j].ID
		})
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return keyLess(out[i].Key, out[j].Key)
	})
	return out
}

// IAMEvents returns the unwindowed IAM change events in timestamp order.
func (g *Aggregator) IAMEvents() []*models.ParsedEvent {
	sortEvents(g.iam)
	return g.iam
}

// ShardFor maps an event to one of n shards by its grouping dimensions.
// Every window key includes (user, host), so events for one key always land
// on the same shard and per-shard aggregators never split a window.
func ShardFor(ev *models.ParsedEvent, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv32(ev.User + "\x00" + ev.Hostname)
	return int(h % uint32(n))
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

func (g *Aggregator) touch(key Key) *Accumulator {
	acc, ok := g.acc[key]
	if !ok {
		acc = &Accumulator{Key: key}
		g.acc[key] = acc
	}
	return acc
}

func sortEvents(events []*models.ParsedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Command < events[j].Command
	})
}

func keyLess(a, b Key) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.Host != b.Host {
		return a.Host < b.Host
	}
	if a.User != b.User {
		return a.User < b.User
	}
	if a.IP != b.IP {
		return a.IP < b.IP
	}
	return a.Source < b.Source
}
