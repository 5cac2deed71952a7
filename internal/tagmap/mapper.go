// Package tagmap derives OSM tag sets from NVDB segment attributes. The
// mapping is a pure function of one segment's property map: a fixed-order
// rule pipeline where earlier rules (direction, structures, classification)
// feed the guards of later ones.
package tagmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wegman-software/nvdb2osm-go/internal/build"
	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
)

// Result is the mapper's output for one segment.
type Result struct {
	Tags map[string]string
	Key  build.WayKey

	// Drop marks segments that should not appear in the output at all,
	// e.g. ferry connections duplicated on the cycle network.
	Drop bool

	// Features are tagged point features (crossings, barriers, cameras)
	// anchored at the segment's first vertex.
	Features []Feature
}

// Map runs the rule pipeline over one property map.
func Map(props nvdb.Properties) Result {
	m := &mapping{props: props, tags: make(map[string]string, 8)}

	m.mapOneway()
	m.mapStructures()
	m.mapHighway()
	m.mapMotorwayOverride()
	m.mapLinks()
	m.mapRef()
	m.mapRoundabout()
	m.mapMaxspeed()
	m.mapTrafficProhibition()
	m.mapVehicleRestrictions()
	m.mapHazmat()
	m.mapOvertaking()
	m.mapLanes()
	m.mapSurface()
	m.mapWidth()
	m.mapMisc()
	m.mapName()
	m.mapLayerFallback()

	partial, full := build.Fingerprints(m.tags)
	return Result{
		Tags: m.tags,
		Key: build.WayKey{
			Highway:         m.tags["highway"],
			Ref:             m.tags["ref"],
			Name:            m.tags["name"],
			RouteID:         props.Text(nvdb.ColRouteID),
			Fingerprint:     partial,
			FullFingerprint: full,
		},
		Drop:     m.drop(),
		Features: pointFeatures(props),
	}
}

type mapping struct {
	props nvdb.Properties
	tags  map[string]string
	ow    oneway
}

// set stores a tag unless the trimmed value is empty.
func (m *mapping) set(key, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		m.tags[key] = value
	}
}

// netType returns "Vägtrafiknättyp": 1 car, 2 cycle, 4 foot.
func (m *mapping) netType() int64 {
	n, ok := m.props.Int64("Vagtr_474")
	if !ok {
		return 1
	}
	return n
}

func (m *mapping) onCycleNet() bool {
	n := m.netType()
	return n == 2 || n == 4
}

func (m *mapping) isFerry() bool {
	return m.props.Flag("Farjeled")
}

// drop decides whether the segment is omitted entirely: ferry connections
// carried again on the cycle/foot network duplicate the car-network ferry.
func (m *mapping) drop() bool {
	return m.isFerry() && m.onCycleNet()
}

// mapOneway resolves the forbidden-direction columns. It must run first:
// every directional rule keys off m.ow.
func (m *mapping) mapOneway() {
	fwd := m.props.Flag("F_ForbjudenFardriktning")
	bwd := m.props.Flag("B_ForbjudenFardriktning")
	switch {
	case fwd && bwd:
		m.tags["access"] = "no"
	case fwd:
		m.tags["oneway"] = "yes"
		m.ow = forwardOnly
	case bwd:
		m.tags["oneway"] = "-1"
		m.ow = backwardOnly
	default:
		if n, ok := m.props.Int64("Korfa_524"); ok && n == 1 {
			m.tags["oneway"] = "yes"
			m.ow = forwardOnly
		}
	}
}

// mapStructures resolves bridge/tunnel from the construction column.
// Konst_190 arrives either as an enum (1 over-bridge, 2 under car traffic,
// 3 under cycle traffic, 4 middle layer) or as text ("bro", "tunnel").
func (m *mapping) mapStructures() {
	v, found := m.props["Konst_190"]
	if !found || v.IsNull() {
		return
	}

	isBridge, isTunnel := false, false
	if code, ok := v.Int64(); ok {
		switch code {
		case 1, 4:
			isBridge = true
		case 3:
			isTunnel = true
		case 2:
			// Road passing under a bridge: only the cycle/foot network
			// renders as a tunnel; the car network keeps its own level.
			isTunnel = m.netType() != 1
		}
	} else {
		s := strings.ToLower(v.Text())
		isBridge = strings.Contains(s, "bro")
		isTunnel = strings.Contains(s, "tunnel")
	}

	switch {
	case isBridge:
		m.tags["bridge"] = "yes"
	case isTunnel:
		m.tags["tunnel"] = "yes"
		m.tags["layer"] = "-1"
	default:
		return
	}

	prefix := "bridge"
	if isTunnel {
		prefix = "tunnel"
	}
	if name := m.props.Text("Namn_193"); name != "" {
		m.set(prefix+":name", name)
	} else if other := m.props.Text("Namn_132"); other != "" {
		lower := strings.ToLower(other)
		if (isBridge && strings.Contains(lower, "bron")) ||
			(isTunnel && strings.Contains(lower, "tunneln")) {
			m.set(prefix+":name", other)
		}
	}
	// structure identity from the national bridge and tunnel register
	if ident := m.props.Text("Ident_191"); ident != "" && ident != "0" {
		m.set(prefix+":ref", ident)
	}
}

// mapHighway is the classification cascade: ferry, cycle/foot network,
// road category, pedestrian zones, functional class, private roads, and
// finally the urban/rural default.
func (m *mapping) mapHighway() {
	if m.isFerry() {
		m.mapFerry()
		return
	}
	if m.onCycleNet() {
		m.mapCyclePath()
		return
	}

	if kateg, ok := m.props.Int64("Kateg_380"); ok {
		switch kateg {
		case 1, 2: // europaväg, riksväg
			m.tags["highway"] = "trunk"
			return
		case 3: // primär länsväg
			m.tags["highway"] = "primary"
			return
		case 4: // övrig länsväg
			m.tags["highway"] = "secondary"
			return
		}
	}

	if m.props.Flag("L_Gagata") || m.props.Flag("R_Gagata") {
		m.tags["highway"] = "pedestrian"
		return
	}
	if m.props.Flag("L_Gangfartsomrade") || m.props.Flag("R_Gangfartsomrade") {
		m.tags["highway"] = "living_street"
		return
	}

	klass, _ := m.props.Int64("Klass_181")
	if klass > 0 && klass < 6 {
		m.tags["highway"] = "tertiary"
		return
	}

	tillg, _ := m.props.Int64("Tillg_169")
	slitl, _ := m.props.Int64("Slitl_152")
	urban := m.props.Flag("TattbebyggtOmrade")
	hasName := m.props.Text("Namn_130") != ""
	vagnr := m.props.Text("Vagnr_10370")
	hasVagnr := vagnr != "" && vagnr != "0" && vagnr != "-1"

	if owner, _ := m.props.Int64("Vagha_6"); owner == 3 { // enskild väghållare
		switch {
		case (klass > 0 && klass < 8) || hasVagnr || (klass == 8 && tillg == 0):
			if urban {
				m.tags["highway"] = "residential"
			} else {
				m.tags["highway"] = "unclassified"
			}
		case tillg > 0 && !hasName && slitl != 1:
			m.tags["highway"] = "track"
		default:
			m.tags["highway"] = "service"
		}
		return
	}

	if tillg > 0 && !hasName && slitl != 1 {
		m.tags["highway"] = "track"
		return
	}
	if klass == 9 || (klass == 8 && tillg > 0) {
		m.tags["highway"] = "service"
		return
	}

	if urban {
		m.tags["highway"] = "residential"
	} else {
		m.tags["highway"] = "unclassified"
	}
}

// mapFerry tags a ferry route: route=ferry and no highway key.
func (m *mapping) mapFerry() {
	m.tags["route"] = "ferry"
	m.tags["foot"] = "yes"
	if m.netType() == 1 {
		m.tags["motor_vehicle"] = "yes"
	} else {
		m.tags["motor_vehicle"] = "no"
	}

	if kateg, ok := m.props.Int64("Kateg_380"); ok {
		switch kateg {
		case 1, 2:
			m.tags["ferry"] = "trunk"
		case 3:
			m.tags["ferry"] = "primary"
		case 4:
			m.tags["ferry"] = "secondary"
		}
	}
	m.set("name", m.props.Text("Farje_139"))
}

// mapCyclePath classifies cycle/foot network segments from the GCM type.
func (m *mapping) mapCyclePath() {
	if m.props.Flag("L_Separ_500") || m.props.Flag("R_Separ_500") {
		m.tags["highway"] = "footway"
		m.tags["footway"] = "sidewalk"
	} else if code, ok := m.props.Int64("GCM_t_502"); ok {
		if entry, known := gcmTypes[code]; known {
			if entry.highway != "" {
				m.tags["highway"] = entry.highway
			}
			for _, kv := range entry.extra {
				m.tags[kv[0]] = kv[1]
			}
		} else {
			m.tags["highway"] = m.cycleNetDefault()
		}
	} else {
		m.tags["highway"] = m.cycleNetDefault()
	}

	// On the pure foot network a cycleway classification downgrades.
	if m.netType() == 4 && m.tags["highway"] == "cycleway" {
		m.tags["highway"] = "footway"
		if sub, ok := m.tags["cycleway"]; ok {
			delete(m.tags, "cycleway")
			m.tags["footway"] = sub
		}
	}

	m.set("name", m.props.Text("Namn_130"))

	if m.props.Flag("GCM_belyst") && m.tags["highway"] != "" {
		m.tags["lit"] = "yes"
	}
	if m.tags["highway"] == "cycleway" {
		if route := m.props.Text("Namn_457"); route != "" {
			m.set("cycleway:name", route)
		} else if route := m.props.Text("C_Cykelled"); route != "" && route != "0" && route != "1" {
			// signed cycle route; numeric flag values carry no name
			m.set("cycleway:name", route)
		}
	}
}

func (m *mapping) cycleNetDefault() string {
	if m.netType() == 2 {
		return "cycleway"
	}
	return "footway"
}

// mapMotorwayOverride promotes the classification after the category pass.
// NVDB motorways are directed carriageways, so oneway follows unless the
// direction columns already decided.
func (m *mapping) mapMotorwayOverride() {
	vagty, _ := m.props.Int64("Vagty_41")
	switch {
	case m.props.Flag("Motorvag") || vagty == 1:
		m.tags["highway"] = "motorway"
		if _, set := m.tags["oneway"]; !set {
			if _, blocked := m.tags["access"]; !blocked {
				m.tags["oneway"] = "yes"
				m.ow = forwardOnly
			}
		}
	case m.props.Flag("Motortrafikled") || vagty == 2:
		m.tags["highway"] = "trunk"
		m.tags["motorroad"] = "yes"
	}
}

// mapLinks detects ramps: low delivery-quality class, off the functional
// priority network, not a roundabout.
func (m *mapping) mapLinks() {
	highway := m.tags["highway"]
	switch highway {
	case "motorway", "trunk", "primary":
	default:
		return
	}
	if _, onPriorityNet := m.props.Int64("FPV_k_309"); onPriorityNet {
		return
	}
	delivery, ok := m.props.Int64("Lever_292")
	if !ok || delivery >= 4 {
		return
	}
	if m.props.Flag("F_Cirkulationsplats") || m.props.Flag("B_Cirkulationsplats") {
		return
	}
	m.tags["highway"] = highway + "_link"
}

// mapRef assembles the road reference: E<european>;<national>;<county letter
// + number>, falling back to the category/main-number scheme when the road
// number columns are absent.
func (m *mapping) mapRef() {
	if m.tags["route"] == "ferry" {
		m.mapFerryRef()
		return
	}

	var parts []string
	if e, ok := m.props.Int64("Evag_555"); ok && e > 0 {
		parts = append(parts, "E"+strconv.FormatInt(e, 10))
	}
	if vagnr := m.props.Text("Vagnr_10370"); vagnr != "" && vagnr != "0" && vagnr != "-1" {
		if lan, ok := m.props.Int64("Lan_558"); ok {
			if letter, known := countyLetters[lan]; known && isDigits(vagnr) {
				vagnr = letter + " " + vagnr
			}
		}
		parts = append(parts, vagnr)
	}
	if len(parts) > 0 {
		m.tags["ref"] = strings.Join(parts, ";")
		return
	}

	m.mapMainNumberRef()
}

// mapMainNumberRef is the fallback scheme from the category and main road
// number columns.
func (m *mapping) mapMainNumberRef() {
	kateg, katOK := m.props.Int64("Kateg_380")
	huvnr := m.props.Text("Huvnr_556_1")
	if !katOK || huvnr == "" || huvnr == "0" || huvnr == "-1" {
		return
	}
	switch kateg {
	case 1:
		m.tags["ref"] = "E " + huvnr
	case 2, 3:
		m.tags["ref"] = huvnr
	case 4:
		if kommun, ok := m.props.Int64("Kommu_141"); ok {
			if letter, known := countyLetters[kommun/100]; known {
				m.tags["ref"] = letter + " " + huvnr
			}
		}
	}
}

func (m *mapping) mapFerryRef() {
	huvnr := m.props.Text("Huvnr_556_1")
	if huvnr == "" || huvnr == "0" {
		return
	}
	if kateg, _ := m.props.Int64("Kateg_380"); kateg == 1 {
		m.tags["ref"] = "E " + huvnr
	} else {
		m.tags["ref"] = huvnr
	}
}

func (m *mapping) mapRoundabout() {
	f, fOK := m.props.Int64("F_Cirkulationsplats")
	b, bOK := m.props.Int64("B_Cirkulationsplats")
	tagDirection(m.tags, m.ow, "junction", "roundabout", f, b, fOK, bOK)
}

func (m *mapping) mapMaxspeed() {
	f, fOK := m.props.Int64("F_Hogst_225")
	b, bOK := m.props.Int64("B_Hogst_225")
	fOK = fOK && f > 0 && f <= 120
	bOK = bOK && b > 0 && b <= 120

	// Tracks carry a blanket 70/70 that is not a posted limit.
	if m.tags["highway"] == "track" && f == 70 && b == 70 {
		return
	}

	if fOK || bOK {
		tagDirection(m.tags, m.ow, "maxspeed", "", f, b, fOK, bOK)
		return
	}
	if v, ok := m.props.Int64("Hogst_36"); ok && v > 0 && v <= 120 {
		m.tags["maxspeed"] = strconv.FormatInt(v, 10)
	}
}

// mapTrafficProhibition handles the blanket traffic-prohibition pair:
// symmetric becomes access=no, one-sided becomes a directional
// motor_vehicle restriction.
func (m *mapping) mapTrafficProhibition() {
	fwd := m.props.Flag("F_ForbudTrafik")
	bwd := m.props.Flag("B_ForbudTrafik")
	if fwd && bwd {
		m.tags["access"] = "no"
		return
	}
	var f, b int64
	if fwd {
		f = 1
	}
	if bwd {
		b = 1
	}
	tagDirection(m.tags, m.ow, "motor_vehicle", "no", f, b, fwd, bwd)
}

func (m *mapping) mapVehicleRestrictions() {
	if h, ok := m.props.Float64("Fri_h_143"); ok && h > 0 && h < 10 {
		m.tags["maxheight"] = fmt.Sprintf("%.1f", h)
	}
	if l, ok := m.props.Float64("Hogst_46"); ok && l > 0 && l < 50 {
		m.tags["maxlength"] = fmt.Sprintf("%.1f", l)
	}
	if a, ok := m.props.Float64("Hogst_55_30"); ok && a > 0 && a < 100 {
		m.tags["maxaxleload"] = fmt.Sprintf("%.1f", a)
	}

	wf, wfOK := m.props.Float64("F_Hogst_24")
	wb, wbOK := m.props.Float64("B_Hogst_24")
	wfOK = wfOK && wf > 0 && wf < 100
	wbOK = wbOK && wb > 0 && wb < 100
	switch {
	case wfOK && wbOK && abs(wf-wb) < 0.1:
		m.tags["maxweight"] = fmt.Sprintf("%.1f", wf)
	case wfOK && wbOK:
		m.tags["maxweight:forward"] = fmt.Sprintf("%.1f", wf)
		m.tags["maxweight:backward"] = fmt.Sprintf("%.1f", wb)
	case wfOK:
		m.tags["maxweight:forward"] = fmt.Sprintf("%.1f", wf)
	case wbOK:
		m.tags["maxweight:backward"] = fmt.Sprintf("%.1f", wb)
	}

	// Framkomlighetsklass 4: forest roads impassable for heavy trucks.
	if framk, ok := m.props.Int64("Framk_161"); ok && framk == 4 {
		m.tags["hgv"] = "no"
	}

	m.mapVehicleTypeProhibitions()

	// Bearing class gives bridges a gross-weight fallback.
	if _, isBridge := m.tags["bridge"]; isBridge {
		if _, set := m.tags["maxweight"]; !set {
			if barig, ok := m.props.Int64("Barig_64"); ok {
				if w, known := bearingClassWeights[barig]; known {
					m.tags["maxweight"] = w
				}
			}
		}
	}
}

// mapVehicleTypeProhibitions applies "Förbud mot trafik/Gäller fordon":
// the narrowest matching access key gets value no, optionally conditional
// on vehicle weight.
func (m *mapping) mapVehicleTypeProhibitions() {
	for _, dir := range []struct {
		gallarCol, totalCol string
		forward             bool
	}{
		{"F_Gallar_135", "F_Total_136", true},
		{"B_Gallar_135", "B_Total_136", false},
	} {
		vehicleType, ok := m.props.Int64(dir.gallarCol)
		if !ok {
			continue
		}
		accessKey, known := vehicleAccessKeys[vehicleType]
		if !known {
			continue
		}

		weight, weightOK := m.props.Float64(dir.totalCol)
		weightOK = weightOK && weight > 0

		if weightOK && accessKey == "hgv" {
			// A weight-scoped truck ban is just a weight limit.
			if dir.forward {
				m.tags["maxweight:forward"] = formatWeight(weight)
			} else {
				m.tags["maxweight:backward"] = formatWeight(weight)
			}
			continue
		}

		key := accessKey
		if weightOK {
			key += suffixFor(m.ow, dir.forward) + ":conditional"
			if closedDirection(m.ow, dir.forward) {
				continue
			}
			m.tags[key] = fmt.Sprintf("no @ (weight>%s)", formatWeight(weight))
			continue
		}
		if closedDirection(m.ow, dir.forward) {
			continue
		}
		m.tags[accessKey+suffixFor(m.ow, dir.forward)] = "no"
	}
}

// suffixFor returns the directional tag suffix, empty when the restriction
// covers the oneway's only open direction.
func suffixFor(ow oneway, forward bool) string {
	if (forward && ow == forwardOnly) || (!forward && ow == backwardOnly) {
		return ""
	}
	if forward {
		return ":forward"
	}
	return ":backward"
}

// closedDirection reports whether the restriction points into the closed
// half of a oneway and should be dropped.
func closedDirection(ow oneway, forward bool) bool {
	return (forward && ow == backwardOnly) || (!forward && ow == forwardOnly)
}

func formatWeight(w float64) string {
	if w == float64(int64(w)) {
		return strconv.FormatInt(int64(w), 10)
	}
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func (m *mapping) mapHazmat() {
	if m.props.Flag("Rekom_185") {
		m.tags["hazmat"] = "designated"
	}
	f, fOK := m.props.Int64("F_Beskr_124")
	b, bOK := m.props.Int64("B_Beskr_124")
	if fOK && f > 0 {
		f = 1
	}
	if bOK && b > 0 {
		b = 1
	}
	tagDirection(m.tags, m.ow, "hazmat", "no", f, b, fOK && f > 0, bOK && b > 0)
}

func (m *mapping) mapOvertaking() {
	f, fOK := m.props.Int64("F_Omkorningsforbud")
	b, bOK := m.props.Int64("B_Omkorningsforbud")
	tagDirection(m.tags, m.ow, "overtaking", "no", f, b, fOK, bOK)
}

func (m *mapping) mapLanes() {
	// Two lanes on a two-way road is the default and stays untagged.
	if n, ok := m.props.Int64("Korfa_497"); ok {
		if n > 2 || (m.ow != bothWays && n > 1) {
			m.tags["lanes"] = strconv.FormatInt(n, 10)
		}
	}

	// Körfältsanvändning: 2 = bus-only lane, 1 = dedicated PSV lane.
	fPSV, _ := m.props.Int64("F_Korfa_517")
	bPSV, _ := m.props.Int64("B_Korfa_517")

	fBus := fPSV == 2
	bBus := bPSV == 2
	tagDirection(m.tags, m.ow, "psv", "yes", 1, 1, fBus, bBus)
	tagDirection(m.tags, m.ow, "motor_vehicle", "no", 1, 1, fBus, bBus)

	fLane := fPSV == 1
	bLane := bPSV == 1
	tagDirection(m.tags, m.ow, "lanes:psv", "1", 1, 1, fLane, bLane)
}

func (m *mapping) mapSurface() {
	if m.onCycleNet() || m.tags["route"] == "ferry" {
		return
	}
	if code, ok := m.props.Int64("Slitl_152"); ok {
		if surface, known := surfaceValues[code]; known {
			m.tags["surface"] = surface
		}
	}
}

func (m *mapping) mapWidth() {
	if m.onCycleNet() || m.tags["route"] == "ferry" {
		return
	}
	if w, ok := m.props.Float64("Bredd_156"); ok && w > 0 && w < 50 {
		m.tags["width"] = fmt.Sprintf("%.1f", w)
	}
}

func (m *mapping) mapMisc() {
	if huvnr := m.props.Text("Huvnr_556_1"); huvnr != "" && huvnr != "0" {
		m.tags["priority_road"] = "designated"
	}
	if !m.onCycleNet() {
		if n, ok := m.props.Int64("C_Rekbilvagcykeltrafik"); ok && n == 1 {
			m.tags["bicycle"] = "designated"
		}
	}
	if zone, ok := m.props.Int64("Miljozon"); ok {
		if zone == 1 {
			m.tags["low_emission_zone"] = "yes"
		} else if zone > 1 {
			m.tags["low_emission_zone"] = strconv.FormatInt(zone, 10)
		}
	}
	if m.props.Flag("GCM_belyst") {
		m.tags["lit"] = "yes"
	}
}

func (m *mapping) mapName() {
	if m.onCycleNet() || m.tags["route"] == "ferry" {
		return
	}
	// Roundabout legs stay unnamed; the name belongs to the through road.
	if m.props.Flag("F_Cirkulationsplats") || m.props.Flag("B_Cirkulationsplats") {
		return
	}
	name := m.props.Text("Namn_130")
	if name == "" || name == "-1" {
		name = m.props.Text("Namn_132")
	}
	if name != "" && name != "-1" {
		m.set("name", name)
	}
}

func (m *mapping) mapLayerFallback() {
	if _, isBridge := m.tags["bridge"]; isBridge {
		if _, set := m.tags["layer"]; !set {
			m.tags["layer"] = "1"
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
