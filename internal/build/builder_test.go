package build

import (
	"reflect"
	"testing"
)

func collect(policy Policy) (*Builder, *[]Way) {
	var ways []Way
	b := NewBuilder(policy, func(w Way) { ways = append(ways, w) })
	return b, &ways
}

func key(highway, ref, name string, tags map[string]string) WayKey {
	partial, full := Fingerprints(tags)
	return WayKey{
		Highway:     highway,
		Ref:         ref,
		Name:        name,
		Fingerprint: partial, FullFingerprint: full,
	}
}

func TestBuilderJoinsMatchingRun(t *testing.T) {
	tags := map[string]string{"highway": "motorway", "ref": "E4"}
	k := key("motorway", "E4", "", tags)

	b, ways := collect(PolicyRefName)
	if !b.Add(k, []int64{0, 1}, tags) {
		t.Fatal("first segment skipped")
	}
	if !b.Add(k, []int64{1, 2}, tags) {
		t.Fatal("second segment skipped")
	}
	b.Close()

	if len(*ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(*ways))
	}
	if !reflect.DeepEqual((*ways)[0].Refs, []int64{0, 1, 2}) {
		t.Errorf("refs = %v", (*ways)[0].Refs)
	}
}

func TestBuilderTagMismatchBreaksJoin(t *testing.T) {
	tagsA := map[string]string{"highway": "motorway", "ref": "E4"}
	tagsB := map[string]string{"highway": "motorway", "ref": "E45"}

	b, ways := collect(PolicyRefName)
	b.Add(key("motorway", "E4", "", tagsA), []int64{0, 1}, tagsA)
	b.Add(key("motorway", "E45", "", tagsB), []int64{1, 2}, tagsB)
	b.Close()

	if len(*ways) != 2 {
		t.Fatalf("got %d ways, want 2", len(*ways))
	}
	// Both ways still reference the shared node 1.
	if (*ways)[0].Refs[1] != 1 || (*ways)[1].Refs[0] != 1 {
		t.Errorf("shared node not reused: %v / %v", (*ways)[0].Refs, (*ways)[1].Refs)
	}
}

func TestBuilderDisconnectedBreaksJoin(t *testing.T) {
	tags := map[string]string{"highway": "residential", "name": "Storgatan"}
	k := key("residential", "", "Storgatan", tags)

	b, ways := collect(PolicyRefName)
	b.Add(k, []int64{0, 1}, tags)
	b.Add(k, []int64{5, 6}, tags) // gap: 1 != 5
	b.Close()

	if len(*ways) != 2 {
		t.Fatalf("got %d ways, want 2", len(*ways))
	}
}

func TestBuilderRoutePolicyUnionsTags(t *testing.T) {
	tagsA := map[string]string{"highway": "primary", "maxspeed": "80"}
	tagsB := map[string]string{"highway": "primary", "maxspeed": "60", "surface": "paved"}
	kA := WayKey{RouteID: "r1"}
	kB := WayKey{RouteID: "r1"}

	b, ways := collect(PolicyRoute)
	b.Add(kA, []int64{0, 1}, tagsA)
	b.Add(kB, []int64{1, 2}, tagsB)
	b.Close()

	if len(*ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(*ways))
	}
	got := (*ways)[0].Tags
	if got["maxspeed"] != "80" {
		t.Errorf("maxspeed = %q, first segment should win", got["maxspeed"])
	}
	if got["surface"] != "paved" {
		t.Errorf("surface = %q, union should carry new keys", got["surface"])
	}
}

func TestBuilderCollapseAndSkip(t *testing.T) {
	tags := map[string]string{"highway": "track"}
	k := key("track", "", "", tags)

	b, ways := collect(PolicyRefName)
	if b.Add(k, []int64{3, 3, 3}, tags) {
		t.Error("degenerate segment not skipped")
	}
	if !b.Add(k, []int64{3, 3, 4, 4, 5}, tags) {
		t.Error("collapsible segment skipped")
	}
	b.Close()

	if len(*ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(*ways))
	}
	if !reflect.DeepEqual((*ways)[0].Refs, []int64{3, 4, 5}) {
		t.Errorf("refs = %v", (*ways)[0].Refs)
	}
}

func TestBuilderSelfLoopStandsAlone(t *testing.T) {
	tags := map[string]string{"highway": "service"}
	k := key("service", "", "", tags)

	b, ways := collect(PolicyRefName)
	b.Add(k, []int64{0, 1}, tags)
	b.Add(k, []int64{1, 2, 3, 1}, tags) // loop back to its own start
	b.Add(k, []int64{1, 4}, tags)
	b.Close()

	if len(*ways) != 2 {
		t.Fatalf("got %d ways, want 2", len(*ways))
	}
	// The loop is emitted on arrival and does not break the through run.
	if !reflect.DeepEqual((*ways)[0].Refs, []int64{1, 2, 3, 1}) {
		t.Errorf("loop refs = %v", (*ways)[0].Refs)
	}
	if !reflect.DeepEqual((*ways)[1].Refs, []int64{0, 1, 4}) {
		t.Errorf("through refs = %v", (*ways)[1].Refs)
	}
}

func TestBuilderWayNodeCap(t *testing.T) {
	tags := map[string]string{"highway": "unclassified"}
	k := key("unclassified", "", "", tags)

	b, ways := collect(PolicyRefName)
	next := int64(0)
	for i := 0; i < 2100; i++ {
		b.Add(k, []int64{next, next + 1}, tags)
		next++
	}
	b.Close()

	if len(*ways) != 2 {
		t.Fatalf("got %d ways, want 2", len(*ways))
	}
	first := (*ways)[0]
	second := (*ways)[1]
	if len(first.Refs) > MaxWayNodes {
		t.Errorf("first way has %d refs, cap is %d", len(first.Refs), MaxWayNodes)
	}
	// The restarted run begins at the closed way's final node.
	if second.Refs[0] != first.Refs[len(first.Refs)-1] {
		t.Errorf("runs do not share the split node: %d vs %d",
			second.Refs[0], first.Refs[len(first.Refs)-1])
	}
}

func TestFingerprintsExcludeNameRef(t *testing.T) {
	a := map[string]string{"highway": "primary", "name": "A", "ref": "1"}
	b := map[string]string{"highway": "primary", "name": "B", "ref": "2"}
	c := map[string]string{"highway": "secondary", "name": "A", "ref": "1"}

	pa, fa := Fingerprints(a)
	pb, fb := Fingerprints(b)
	pc, _ := Fingerprints(c)

	if pa != pb {
		t.Error("partial fingerprint should ignore name/ref")
	}
	if fa == fb {
		t.Error("full fingerprint should include name/ref")
	}
	if pa == pc {
		t.Error("partial fingerprint should see highway difference")
	}
}
