package build

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Policy selects the join rule deciding when two consecutive segments merge
// into one way.
type Policy int

const (
	// PolicyRefName joins segments sharing highway class, ref, name and
	// tag fingerprint.
	PolicyRefName Policy = iota
	// PolicyConnected joins segments whose full tag sets match.
	PolicyConnected
	// PolicyRoute joins segments of the same route id regardless of tags.
	PolicyRoute
)

// ParsePolicy maps the CLI spelling to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "refname":
		return PolicyRefName, nil
	case "connected":
		return PolicyConnected, nil
	case "route":
		return PolicyRoute, nil
	}
	return 0, fmt.Errorf("unknown simplify method %q", s)
}

func (p Policy) String() string {
	switch p {
	case PolicyRefName:
		return "refname"
	case PolicyConnected:
		return "connected"
	case PolicyRoute:
		return "route"
	}
	return "unknown"
}

// WayKey carries the identity fields the policies consult.
type WayKey struct {
	Highway string
	Ref     string
	Name    string
	RouteID string

	// Fingerprint hashes the tag set excluding name and ref;
	// FullFingerprint hashes everything.
	Fingerprint     uint64
	FullFingerprint uint64
}

// Fingerprints computes both tag-set hashes over the sorted tag pairs.
func Fingerprints(tags map[string]string) (partial, full uint64) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hp := fnv.New64a()
	hf := fnv.New64a()
	for _, k := range keys {
		pair := k + "\x00" + tags[k] + "\x01"
		hf.Write([]byte(pair))
		if k == "name" || k == "ref" {
			continue
		}
		hp.Write([]byte(pair))
	}
	return hp.Sum64(), hf.Sum64()
}

// Way is a finalized run of joined segments.
type Way struct {
	Refs []int64 // node offsets from the interner
	Tags map[string]string
}

type openWay struct {
	refs []int64
	tags map[string]string
	seq  int
}

// MaxWayNodes caps way length; the OSM ecosystem rejects ways beyond 2000
// nodes, so a run is force-closed there and restarted at the shared node.
const MaxWayNodes = 2000

// Builder consumes tagged segments in input order and emits ways as their
// runs close. Emission order is deterministic: a way is emitted the moment
// its run is broken, and remaining open ways flush in creation order on
// Close.
type Builder struct {
	policy Policy
	emit   func(Way)

	open map[string]*openWay
	seq  int
}

// NewBuilder creates a builder that calls emit for every finalized way.
func NewBuilder(policy Policy, emit func(Way)) *Builder {
	return &Builder{
		policy: policy,
		emit:   emit,
		open:   make(map[string]*openWay),
	}
}

// joinKey reduces a WayKey to the identity string the active policy groups
// on.
func (b *Builder) joinKey(key WayKey) string {
	switch b.policy {
	case PolicyConnected:
		return strconv.FormatUint(key.FullFingerprint, 16)
	case PolicyRoute:
		return key.RouteID
	default:
		return key.Highway + "\x00" + key.Ref + "\x00" + key.Name + "\x00" +
			strconv.FormatUint(key.Fingerprint, 16)
	}
}

// Add feeds one segment's interned node list. Returns false when the
// segment collapses below two distinct nodes and is skipped.
func (b *Builder) Add(key WayKey, nodes []int64, tags map[string]string) bool {
	refs := collapseRuns(nodes)
	if len(refs) < 2 {
		return false
	}

	// Self-loops stand alone and never join.
	if refs[0] == refs[len(refs)-1] {
		b.emit(Way{Refs: refs, Tags: tags})
		return true
	}

	jk := b.joinKey(key)
	ow := b.open[jk]
	if ow != nil && ow.refs[len(ow.refs)-1] == refs[0] {
		if len(ow.refs)+len(refs)-1 > MaxWayNodes {
			// Force-close at the cap; the new run starts at the shared
			// node so no geometry is lost.
			b.emit(Way{Refs: ow.refs, Tags: ow.tags})
			b.startOpen(jk, refs, tags)
			return true
		}
		ow.refs = append(ow.refs, refs[1:]...)
		if b.policy == PolicyRoute {
			// Union of tags, first segment wins on conflict.
			for k, v := range tags {
				if _, exists := ow.tags[k]; !exists {
					ow.tags[k] = v
				}
			}
		}
		return true
	}

	if ow != nil {
		b.emit(Way{Refs: ow.refs, Tags: ow.tags})
	}
	b.startOpen(jk, refs, tags)
	return true
}

func (b *Builder) startOpen(jk string, refs []int64, tags map[string]string) {
	cloned := make(map[string]string, len(tags))
	for k, v := range tags {
		cloned[k] = v
	}
	b.seq++
	b.open[jk] = &openWay{refs: refs, tags: cloned, seq: b.seq}
}

// Close flushes all still-open ways in the order their runs started.
func (b *Builder) Close() {
	remaining := make([]*openWay, 0, len(b.open))
	for _, ow := range b.open {
		remaining = append(remaining, ow)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].seq < remaining[j].seq })
	for _, ow := range remaining {
		b.emit(Way{Refs: ow.refs, Tags: ow.tags})
	}
	b.open = make(map[string]*openWay)
}

// collapseRuns drops consecutive equal node ids caused by vertices that
// quantize to the same grid point.
func collapseRuns(nodes []int64) []int64 {
	if len(nodes) == 0 {
		return nodes
	}
	out := nodes[:1]
	for _, n := range nodes[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
