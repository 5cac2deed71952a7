package tagmap

import "strconv"

// oneway captures the travel-direction state derived from the forbidden
// direction columns; directional rules consult it to decide between a bare
// tag and :forward/:backward variants.
type oneway int

const (
	bothWays oneway = iota
	forwardOnly
	backwardOnly
)

// tagDirection applies a forward/backward column pair to a tag. When fixed
// is non-empty a set flag (value 1) renders as that string; otherwise the
// raw column value renders as its decimal form. The resolution follows the
// NVDB convention:
//
//   - both directions equal  → tag
//   - open direction only    → tag (on a oneway)
//   - otherwise              → tag:forward / tag:backward
//
// A column that only applies to the closed direction of a oneway is
// dropped.
func tagDirection(tags map[string]string, ow oneway, tag, fixed string, fwd, bwd int64, fwdSet, bwdSet bool) {
	if fwdSet && fwd == 0 {
		fwdSet = false
	}
	if bwdSet && bwd == 0 {
		bwdSet = false
	}
	if !fwdSet && !bwdSet {
		return
	}

	render := func(v int64) string {
		if fixed != "" && v == 1 {
			return fixed
		}
		return strconv.FormatInt(v, 10)
	}

	if fwdSet && bwdSet && render(fwd) == render(bwd) {
		tags[tag] = render(fwd)
		return
	}

	if fwdSet {
		switch ow {
		case backwardOnly:
			// forward lane closed; drop
		case forwardOnly:
			tags[tag] = render(fwd)
		default:
			tags[tag+":forward"] = render(fwd)
		}
	}
	if bwdSet {
		switch ow {
		case forwardOnly:
			// backward lane closed; drop
		case backwardOnly:
			tags[tag] = render(bwd)
		default:
			tags[tag+":backward"] = render(bwd)
		}
	}
}
