package tagmap

// Lookup tables for NVDB enum codes. Sources: Trafikverket's NVDB attribute
// catalogue ("Funktionell vägklass", "Vägkategori", "GCM-typ", etc.).

// countyLetters maps Swedish county numbers to the letter codes used in
// secondary road references (länsbokstav).
var countyLetters = map[int64]string{
	1:  "AB", // Stockholms län
	3:  "C",  // Uppsala län
	4:  "D",  // Södermanlands län
	5:  "E",  // Östergötlands län
	6:  "F",  // Jönköpings län
	7:  "G",  // Kronobergs län
	8:  "H",  // Kalmar län
	9:  "I",  // Gotlands län
	10: "K",  // Blekinge län
	11: "L",  // Kristianstads län (f.d.)
	12: "M",  // Skåne län
	13: "N",  // Hallands län
	14: "O",  // Västra Götalands län
	15: "P",  // Älvsborgs län (f.d.)
	16: "R",  // Skaraborgs län (f.d.)
	17: "S",  // Värmlands län
	18: "T",  // Örebro län
	19: "U",  // Västmanlands län
	20: "W",  // Dalarnas län
	21: "X",  // Gävleborgs län
	22: "Y",  // Västernorrlands län
	23: "Z",  // Jämtlands län
	24: "AC", // Västerbottens län
	25: "BD", // Norrbottens län
}

// vehicleAccessKeys maps "Förbud mot trafik/Gäller fordon" codes to the
// narrowest matching OSM access key.
var vehicleAccessKeys = map[int64]string{
	10:  "motorcar",      // bil
	20:  "bus",           // buss
	30:  "bicycle",       // cykel
	40:  "vehicle",       // fordon
	90:  "hgv",           // lastbil
	100: "goods",         // lätt lastbil
	120: "moped",         // moped
	130: "moped",         // moped klass I
	140: "moped",         // moped klass II
	150: "motorcycle",    // motorcykel
	170: "motor_vehicle", // motordrivna fordon
	180: "motor_vehicle", // motorredskap
	210: "motorcar",      // personbil
	230: "atv",           // terrängmotorfordon
	270: "tractor",       // traktor
	280: "hgv",           // tung lastbil
}

// surfaceValues maps "Slitlager" pavement codes to OSM surface values.
var surfaceValues = map[int64]string{
	1: "paved",
	2: "unpaved",
	3: "gravel",
	4: "asphalt",
}

// bearingClassWeights maps "Bärighetsklass" (Barig_64) to the general
// Swedish gross-weight limit in tonnes, used as a bridge maxweight fallback.
var bearingClassWeights = map[int64]string{
	1: "64.0", // BK1
	2: "51.4", // BK2
	3: "37.5", // BK3
	4: "74.0", // BK4
	5: "74.0", // BK4 särskilda villkor
}

// gcmTypes maps "GCM-typ" codes to the tag set of a cycle/pedestrian
// segment. Codes missing from the table fall back to the network-type
// default; an entry without a highway value sets only its extra tags.
type gcmEntry struct {
	highway string
	extra   [][2]string
}

var gcmTypes = map[int64]gcmEntry{
	1:  {highway: "cycleway"},
	2:  {highway: "cycleway"},
	3:  {highway: "cycleway"},
	4:  {highway: "footway"},
	5:  {highway: "cycleway"},
	8:  {highway: "cycleway"},
	9:  {highway: "cycleway"},
	10: {highway: "footway"},
	11: {highway: "footway"},
	12: {highway: "footway", extra: [][2]string{{"footway", "sidewalk"}}},
	13: {highway: "cycleway"},
	14: {highway: "footway", extra: [][2]string{{"covered", "yes"}}},
	15: {highway: "cycleway"},
	16: {highway: "platform"},
	17: {highway: "steps"},
	18: {highway: "footway", extra: [][2]string{{"conveying", "yes"}}},
	19: {highway: "footway", extra: [][2]string{{"conveying", "yes"}}},
	20: {highway: "elevator"},
	21: {highway: "elevator"},
	22: {extra: [][2]string{{"aerialway", "cable_car"}}},
	23: {extra: [][2]string{{"railway", "funicular"}}},
	24: {highway: "pedestrian"},
	25: {highway: "footway"}, // kaj
	26: {highway: "pedestrian"},
	27: {extra: [][2]string{{"route", "ferry"}, {"foot", "yes"}, {"motor_vehicle", "no"}}},
	28: {highway: "cycleway"},
	29: {highway: "cycleway", extra: [][2]string{{"foot", "no"}}},
}

// trafficCalmingValues maps "Farthinder/Typ" codes.
var trafficCalmingValues = map[int64]string{
	1: "choker",  // avsmalning till ett körfält
	2: "hump",    // gupp
	3: "chicane", // sidoförskjutning
	4: "island",  // sidoförskjutning med refug
	5: "dip",     // väghåla
	6: "cushion", // vägkudde
	7: "table",   // förhöjd gcm-passage
	8: "table",   // förhöjd korsning
	9: "yes",     // övrigt farthinder
}

// barrierValues maps "Väghinder/Hindertyp" codes.
var barrierValues = map[int64]string{
	1:  "bollard",
	2:  "swing_gate",
	3:  "cycle_barrier",
	4:  "lift_gate",
	5:  "jersey_barrier",
	6:  "bus_trap",
	99: "yes",
}
