// Command coordconv is a stdin/stdout filter that converts CSV rows of
// coordinates between frames.
//
// Input rows depend on the mode:
//
//	-m llh  (default)  x,y,z ECEF meters        -> lat,lon (deg), height (m)
//	-m ecef            lat,lon (deg), height(m) -> x,y,z ECEF meters
//	-m ned             x,y,z ECEF meters        -> north,east,down (m), needs -ref
//	-m azel            x,y,z ECEF meters        -> azimuth,elevation (deg), needs -ref
//
// The -ref flag takes "lat,lon,height" with lat/lon in degrees.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nav/navframe/geodesy"
)

const (
	rad2deg = 180 / math.Pi
	deg2rad = math.Pi / 180
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(0)
}

func main() {
	mode := flag.String("m", "llh", "output frame (llh, ecef, ned, azel)")
	ellName := flag.String("e", "wgs84", "reference ellipsoid (wgs84, grs80)")
	refSpec := flag.String("ref", "", "reference point lat,lon,height (degrees, meters)")
	flag.Parse()

	ell, ok := geodesy.ByName(*ellName)
	if !ok {
		log.Fatalln("unknown ellipsoid:", *ellName)
	}

	var ref geodesy.LLH
	if *mode == "ned" || *mode == "azel" {
		if *refSpec == "" {
			log.Fatalln("-ref is required for mode", *mode)
		}
		var err error
		ref, err = parseRef(*refSpec)
		if err != nil {
			log.Fatalln(err)
		}
	}

	r := csv.NewReader(os.Stdin)
	for i := 0; ; i++ {
		rs, err := r.Read()
		if rs == nil && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			log.Fatalln(err)
		}
		a, b, c, err := parseRow(rs)
		if err != nil {
			log.Fatalln(err)
		}

		switch *mode {
		case "llh":
			llh, err := geodesy.LLHFromECEF(geodesy.ECEF{X: a, Y: b, Z: c}, ell)
			if err != nil {
				log.Fatalln(err)
			}
			log.Printf("%6d | %14.9f | %14.9f | %12.4f", i, llh.Lat*rad2deg, llh.Lon*rad2deg, llh.Height)
		case "ecef":
			p, err := geodesy.ECEFFromLLH(geodesy.LLH{Lat: a * deg2rad, Lon: b * deg2rad, Height: c}, ell)
			if err != nil {
				log.Fatalln(err)
			}
			log.Printf("%6d | %14.4f | %14.4f | %14.4f", i, p.X, p.Y, p.Z)
		case "ned":
			v, err := geodesy.NEDFromECEF(geodesy.ECEF{X: a, Y: b, Z: c}, ref, ell)
			if err != nil {
				log.Fatalln(err)
			}
			log.Printf("%6d | %14.4f | %14.4f | %14.4f", i, v.North, v.East, v.Down)
		case "azel":
			azel, err := geodesy.AzElFromECEF(ref, geodesy.ECEF{X: a, Y: b, Z: c}, ell)
			if err != nil {
				log.Fatalln(err)
			}
			log.Printf("%6d | %12.6f | %12.6f", i, azel.Azimuth*rad2deg, azel.Elevation*rad2deg)
		default:
			log.Fatalln("unknown mode:", *mode)
		}
	}
}

func parseRow(rs []string) (float64, float64, float64, error) {
	if len(rs) < 3 {
		return 0, 0, 0, fmt.Errorf("row has %d fields, want 3", len(rs))
	}
	var vs [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rs[i]), 64)
		if err != nil {
			return 0, 0, 0, err
		}
		vs[i] = v
	}
	return vs[0], vs[1], vs[2], nil
}

func parseRef(spec string) (geodesy.LLH, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		return geodesy.LLH{}, fmt.Errorf("bad -ref %q, want lat,lon,height", spec)
	}
	var vs [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geodesy.LLH{}, err
		}
		vs[i] = v
	}
	return geodesy.LLH{Lat: vs[0] * deg2rad, Lon: vs[1] * deg2rad, Height: vs[2]}, nil
}
