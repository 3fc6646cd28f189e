package record

// CoordUpdate is the payload of the coordinate update path: the compound key
// of the rows to touch and the coordinates to store.
type CoordUpdate struct {
	PLZ       string  `json:"plz"`
	Ort       string  `json:"ort"`
	Strasse   string  `json:"strasse"`
	HausNr    string  `json:"hausnr"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (u CoordUpdate) Key() Key {
	return Key{PLZ: u.PLZ, Ort: u.Ort, Strasse: u.Strasse, HausNr: u.HausNr}
}

// CoordUpdateFor builds the update that stores lat/lon for r's key.
func CoordUpdateFor(r Record, lat, lon float64) CoordUpdate {
	return CoordUpdate{
		PLZ:       r.PLZ,
		Ort:       r.Ort,
		Strasse:   r.Strasse,
		HausNr:    r.HausNr,
		Latitude:  lat,
		Longitude: lon,
	}
}
