package main

import (
	"flag"
	"log"
	"os"

	"github.com/goccy/go-json"

	"booth-camera/pkg/camera"
	"booth-camera/pkg/camera/v4l"
	"booth-camera/pkg/ov"
)

type probe struct {
	Authorization camera.Authorization `json:"authorization"`
	Cameras       []ov.Camera          `json:"cameras"`
	Resolved      *ov.Resolved         `json:"resolved,omitempty"`
	Controls      []ov.Control         `json:"controls,omitempty"`
}

func main() {
	id := flag.String("d", "", "device id to resolve, as the UI would pass it")
	controls := flag.Bool("controls", false, "list the controls of the resolved camera")
	flag.Parse()

	hw := v4l.New(v4l.Config{})
	devs, err := hw.Devices()
	if err != nil {
		log.Fatalf("failed to enumerate cameras: %s", err)
	}

	res := probe{Authorization: hw.Authorization(), Cameras: []ov.Camera{}}
	for _, a := range camera.AssignIDs(devs) {
		res.Cameras = append(res.Cameras, ov.Camera{
			ID:       a.ID,
			UniqueID: a.Device.UniqueID,
			Name:     a.Device.Name,
			External: a.Device.External,
		})
	}

	if *id != "" {
		d, err := camera.Resolve(devs, *id)
		if err != nil {
			log.Fatal(err)
		}
		res.Resolved = &ov.Resolved{
			DeviceID: *id,
			UniqueID: d.UniqueID,
			Name:     d.Name,
			Position: string(d.Position()),
		}
		if *controls {
			if res.Controls, err = v4l.Controls(d.Path); err != nil {
				log.Fatalf("failed to read controls of %s: %s", d.Path, err)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(res); err != nil {
		log.Fatal(err)
	}
}
