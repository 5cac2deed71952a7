package tagmap

import (
	"fmt"
	"strconv"

	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
)

// Feature is a tagged point feature derived from segment attributes. The
// pipeline anchors it at the segment's first vertex and emits it as a
// tagged node ahead of the interned way nodes.
type Feature struct {
	Tags map[string]string
}

// pointFeatures extracts crossings, traffic calming, barriers, speed
// cameras, rest areas and roadside parking from one property map.
func pointFeatures(props nvdb.Properties) []Feature {
	var features []Feature
	add := func(tags map[string]string) {
		features = append(features, Feature{Tags: tags})
	}

	// Pedestrian/cycle passages.
	if passage, ok := props.Int64("Passa_85"); ok {
		switch passage {
		case 3, 5: // övergångsställe / annan ordnad passage
			add(map[string]string{"highway": "crossing"})
		case 4: // signalreglerat övergångsställe
			add(map[string]string{"highway": "crossing", "crossing": "traffic_signals"})
		}
	}

	// Railway crossings with protection detail.
	if skydd, ok := props.Int64("Vagsk_100"); ok {
		tags := map[string]string{}
		if net, _ := props.Int64("Vagtr_474"); net == 1 {
			tags["railway"] = "level_crossing"
		} else {
			tags["railway"] = "crossing"
		}
		switch skydd {
		case 1:
			tags["crossing:barrier"] = "full"
		case 2:
			tags["crossing:barrier"] = "half"
		case 3:
			tags["crossing:bell"] = "yes"
			tags["crossing:light"] = "yes"
		case 4:
			tags["crossing:light"] = "yes"
		case 5:
			tags["crossing:bell"] = "yes"
		case 6:
			tags["crossing:saltire"] = "yes"
		case 7:
			tags["crossing"] = "uncontrolled"
		}
		add(tags)
	}

	// Traffic calming.
	if typ, ok := props.Int64("TypAv_82"); ok {
		if calming, known := trafficCalmingValues[typ]; known {
			add(map[string]string{"traffic_calming": calming})
		}
	}

	// Physical barriers, with passable width when surveyed.
	if typ, ok := props.Int64("Hinde_72"); ok {
		if barrier, known := barrierValues[typ]; known {
			tags := map[string]string{"barrier": barrier}
			if w, ok := props.Float64("Passe_73"); ok && w > 0 {
				tags["maxwidth:physical"] = fmt.Sprintf("%.1f", w)
			}
			add(tags)
		}
	}

	// Speed cameras carry the enforced limit of their direction.
	fwdCam := props.Flag("F_ATK_Matplats")
	bwdCam := props.Flag("B_ATK_Matplats")
	if fwdCam || bwdCam {
		tags := map[string]string{"highway": "speed_camera"}
		speedCol := "F_Hogst_225"
		if !fwdCam {
			speedCol = "B_Hogst_225"
		}
		if speed, ok := props.Int64(speedCol); ok && speed > 0 && speed <= 120 {
			tags["maxspeed"] = strconv.FormatInt(speed, 10)
		}
		add(tags)
	}

	// Rest areas with capacities.
	if props.Flag("Rastplats") {
		tags := map[string]string{"highway": "rest_area"}
		if name := props.Text("Rastp_118"); name != "" {
			tags["name"] = name
		}
		if cap, ok := props.Int64("Antal_119"); ok && cap > 0 {
			tags["capacity"] = strconv.FormatInt(cap, 10)
		}
		if capHGV, ok := props.Int64("Antal_122"); ok && capHGV > 0 {
			tags["capacity:hgv"] = strconv.FormatInt(capHGV, 10)
		}
		add(tags)
	}

	// Roadside parking pockets.
	left := props.Flag("L_Rastficka_2")
	right := props.Flag("R_Rastficka_2")
	if left || right {
		tags := map[string]string{"amenity": "parking"}
		if left && !right {
			tags["parking:lane:left"] = "yes"
		} else if right && !left {
			tags["parking:lane:right"] = "yes"
		}
		add(tags)
	}

	return features
}
